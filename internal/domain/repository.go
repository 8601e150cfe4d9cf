package domain

import "context"

// ProgressStore keeps one ProgressSnapshot per session id. Implementations
// serialize mutations of a snapshot so that Completed == len(Results) holds
// for every reader.
type ProgressStore interface {
	Create(ctx context.Context, sessionID string, total int) error
	Get(ctx context.Context, sessionID string) (*ProgressSnapshot, error)
	SetCurrent(ctx context.Context, sessionID, filename string) error
	AppendResult(ctx context.Context, sessionID string, result ProcessingResult) (*ProgressSnapshot, error)
	SetStatus(ctx context.Context, sessionID string, status BatchStatus) error
}
