// Package worker runs batches of image tasks against a watermark provider.
package worker

import (
	"context"
	"sync"
	"time"

	wbfretry "github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/infrastructure/provider"
	"github.com/yokitheyo/wmremover/internal/retry"
	"golang.org/x/sync/errgroup"
)

// BatchWorker processes tasks in fixed-size windows. Windows run one after
// another; the tasks of a window run concurrently.
type BatchWorker struct {
	provider    domain.WatermarkProvider
	store       domain.ProgressStore
	publisher   domain.EventPublisher
	strategy    wbfretry.Strategy
	concurrency int
	retryable   func(error) bool
}

// NewBatchWorker создает воркер батчей
func NewBatchWorker(
	p domain.WatermarkProvider,
	store domain.ProgressStore,
	publisher domain.EventPublisher,
	strategy wbfretry.Strategy,
	concurrency int,
) *BatchWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchWorker{
		provider:    p,
		store:       store,
		publisher:   publisher,
		strategy:    strategy,
		concurrency: concurrency,
		retryable:   provider.IsRetryable,
	}
}

func (w *BatchWorker) Concurrency() int { return w.concurrency }

// Run processes every task and returns the results in completion order.
// A failed task never stops the batch.
func (w *BatchWorker) Run(ctx context.Context, sessionID string, tasks []domain.ImageTask) []domain.ProcessingResult {
	start := time.Now()
	zlog.Logger.Info().
		Str("session_id", sessionID).
		Int("tasks", len(tasks)).
		Int("concurrency", w.concurrency).
		Msg("starting batch")

	var (
		mu      sync.Mutex
		results = make([]domain.ProcessingResult, 0, len(tasks))
	)

	for from := 0; from < len(tasks); from += w.concurrency {
		to := min(from+w.concurrency, len(tasks))

		var g errgroup.Group
		for _, task := range tasks[from:to] {
			g.Go(func() error {
				res := w.processTask(ctx, sessionID, task)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				w.record(ctx, sessionID, res)
				return nil
			})
		}
		_ = g.Wait()
	}

	w.finish(ctx, sessionID, len(tasks))

	zlog.Logger.Info().
		Str("session_id", sessionID).
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")

	return results
}

func (w *BatchWorker) processTask(ctx context.Context, sessionID string, task domain.ImageTask) domain.ProcessingResult {
	if err := w.store.SetCurrent(ctx, sessionID, task.Filename); err != nil {
		zlog.Logger.Warn().Err(err).Str("session_id", sessionID).Str("filename", task.Filename).Msg("failed to set current item")
	}

	var out *domain.RemovalResult
	err := retry.Do(ctx, w.strategy, func(ctx context.Context) error {
		res, err := w.provider.RemoveWatermark(ctx, task.SourceURL, task.Filename)
		if err != nil {
			return err
		}
		out = res
		return nil
	},
		retry.WithClassifier(w.retryable),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			zlog.Logger.Warn().
				Err(err).
				Str("session_id", sessionID).
				Str("filename", task.Filename).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("provider call failed, retrying")
		}),
	)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("filename", task.Filename).
			Msg("failed to remove watermark")
		return domain.FailedResult(task, err)
	}

	return domain.ProcessingResult{
		OriginalURL:  task.SourceURL,
		ProcessedURL: out.ProcessedImageURL,
		Filename:     task.Filename,
		Status:       domain.ResultSuccess,
		JobID:        out.JobID,
	}
}

func (w *BatchWorker) record(ctx context.Context, sessionID string, res domain.ProcessingResult) {
	snap, err := w.store.AppendResult(ctx, sessionID, res)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("session_id", sessionID).Str("filename", res.Filename).Msg("failed to append result")
		return
	}
	w.publish(ctx, domain.ProgressEvent{
		Type:      domain.EventTaskCompleted,
		SessionID: sessionID,
		Total:     snap.Total,
		Completed: snap.Completed,
		Status:    snap.Status,
		Result:    &res,
	})
}

// finish publishes the terminal event. A batch whose progress record missed
// any result is marked as failed so pollers never wait on it forever.
func (w *BatchWorker) finish(ctx context.Context, sessionID string, total int) {
	status := domain.BatchCompleted
	completed := total
	snap, err := w.store.Get(ctx, sessionID)
	if err == nil {
		status, completed = snap.Status, snap.Completed
	}
	if err != nil || completed < total {
		status = domain.BatchError
		if err := w.store.SetStatus(ctx, sessionID, domain.BatchError); err != nil {
			zlog.Logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to mark batch as failed")
		}
		zlog.Logger.Warn().
			Str("session_id", sessionID).
			Int("completed", completed).
			Int("total", total).
			Msg("batch progress is incomplete")
	}
	w.publish(ctx, domain.ProgressEvent{
		Type:      domain.EventBatchCompleted,
		SessionID: sessionID,
		Total:     total,
		Completed: completed,
		Status:    status,
	})
}

func (w *BatchWorker) publish(ctx context.Context, event domain.ProgressEvent) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, event); err != nil {
		zlog.Logger.Warn().Err(err).Str("session_id", event.SessionID).Str("event", event.Type).Msg("failed to publish event")
	}
}
