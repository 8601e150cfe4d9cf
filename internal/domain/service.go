package domain

import (
	"context"
	"io"
)

// RemovalResult is what a provider reports for one successful call.
type RemovalResult struct {
	ProcessedImageURL string
	JobID             string
}

// WatermarkProvider is a single watermark removal backend.
type WatermarkProvider interface {
	Name() string
	RemoveWatermark(ctx context.Context, imageURL, filename string) (*RemovalResult, error)
	// Ping issues a minimal call to check credentials and reachability.
	Ping(ctx context.Context) error
}

type GalleryImage struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type GalleryScraper interface {
	Extract(ctx context.Context, galleryURL string) ([]GalleryImage, error)
}

type StorageService interface {
	// SaveOriginal stores an upload and returns a publicly fetchable URL.
	SaveOriginal(ctx context.Context, filename string, reader io.Reader) (string, error)
	SaveProcessed(ctx context.Context, filename string, reader io.Reader) (string, error)
	Enabled() bool
}

type ProgressEvent struct {
	Type      string            `json:"type"`
	SessionID string            `json:"sessionId"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Status    BatchStatus       `json:"status"`
	Result    *ProcessingResult `json:"result,omitempty"`
}

const (
	EventTaskCompleted  = "task.completed"
	EventBatchCompleted = "batch.completed"
)

type EventPublisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
	Close() error
}

type Upload struct {
	Filename string
	Data     []byte
}

type ProcessRequest struct {
	SessionID  string
	GalleryURL string
	Uploads    []Upload
}

type ProcessResponse struct {
	SessionID string
	Results   []ProcessingResult
	DemoMode  bool
}

type ServiceStatus struct {
	Provider      string `json:"provider"`
	HasAPIKey     bool   `json:"hasApiKey"`
	APIKeyPrefix  string `json:"apiKeyPrefix,omitempty"`
	APIKeyLength  int    `json:"apiKeyLength"`
	DemoMode      bool   `json:"demoMode"`
	Storage       string `json:"storage"`
	ProgressStore string `json:"progressStore"`
	Concurrency   int    `json:"concurrency"`
	MaxRetries    int    `json:"maxRetries"`
}

// WatermarkService is the application surface used by the HTTP handler and CLI.
type WatermarkService interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
	Progress(ctx context.Context, sessionID string) (*ProgressSnapshot, error)
	ExtractGallery(ctx context.Context, galleryURL string) ([]GalleryImage, error)
	Status() ServiceStatus
	TestProvider(ctx context.Context) error
}
