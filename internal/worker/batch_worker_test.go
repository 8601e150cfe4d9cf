package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wbfretry "github.com/wb-go/wbf/retry"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/infrastructure/progress"
	"github.com/yokitheyo/wmremover/internal/infrastructure/provider"
)

type fakeProvider struct {
	fn func(ctx context.Context, imageURL, filename string) (*domain.RemovalResult, error)
}

func (f *fakeProvider) Name() string               { return "fake" }
func (f *fakeProvider) Ping(context.Context) error { return nil }
func (f *fakeProvider) RemoveWatermark(ctx context.Context, imageURL, filename string) (*domain.RemovalResult, error) {
	return f.fn(ctx, imageURL, filename)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var fastStrategy = wbfretry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 2}

func makeTasks(n int) []domain.ImageTask {
	tasks := make([]domain.ImageTask, n)
	for i := range tasks {
		tasks[i] = domain.ImageTask{
			SourceURL: fmt.Sprintf("https://img.example.com/%d.jpg", i),
			Filename:  fmt.Sprintf("%d.jpg", i),
			Origin:    domain.OriginUploaded,
		}
	}
	return tasks
}

func TestRunProcessesWindowsInOrder(t *testing.T) {
	const n, c = 5, 2
	tasks := makeTasks(n)
	index := make(map[string]int, n)
	for i, task := range tasks {
		index[task.Filename] = i
	}

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		finished int
		ordered  = true
	)
	p := &fakeProvider{fn: func(_ context.Context, imageURL, filename string) (*domain.RemovalResult, error) {
		mu.Lock()
		if finished < (index[filename]/c)*c {
			ordered = false
		}
		inFlight++
		maxSeen = max(maxSeen, inFlight)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		finished++
		mu.Unlock()
		return &domain.RemovalResult{ProcessedImageURL: imageURL + "?clean", JobID: "job-" + filename}, nil
	}}

	store := progress.NewMemoryStore(0)
	require.NoError(t, store.Create(context.Background(), "s1", n))
	pub := &recordingPublisher{}

	w := NewBatchWorker(p, store, pub, fastStrategy, c)
	results := w.Run(context.Background(), "s1", tasks)

	require.Len(t, results, n)
	assert.True(t, ordered, "a task started before the previous window finished")
	assert.LessOrEqual(t, maxSeen, c)

	got := make([]string, 0, n)
	for _, r := range results {
		assert.Equal(t, domain.ResultSuccess, r.Status)
		assert.Equal(t, r.OriginalURL+"?clean", r.ProcessedURL)
		got = append(got, r.Filename)
	}
	want := make([]string, 0, n)
	for _, task := range tasks {
		want = append(want, task.Filename)
	}
	assert.ElementsMatch(t, want, got)

	snap, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, n, snap.Completed)
	assert.Len(t, snap.Results, n)
	assert.Equal(t, domain.BatchCompleted, snap.Status)
	assert.Empty(t, snap.Current)

	require.Len(t, pub.events, n+1)
	last := pub.events[n]
	assert.Equal(t, domain.EventBatchCompleted, last.Type)
	assert.Equal(t, n, last.Completed)
	for _, e := range pub.events[:n] {
		assert.Equal(t, domain.EventTaskCompleted, e.Type)
		require.NotNil(t, e.Result)
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	p := &fakeProvider{fn: func(_ context.Context, imageURL, _ string) (*domain.RemovalResult, error) {
		if calls.Add(1) < 3 {
			return nil, &provider.Error{Kind: domain.ErrProviderUnavailable, StatusCode: 503, Temporary: true}
		}
		return &domain.RemovalResult{ProcessedImageURL: "https://out.example.com/x.jpg", JobID: "j1"}, nil
	}}
	store := progress.NewMemoryStore(0)
	require.NoError(t, store.Create(context.Background(), "s1", 1))

	results := NewBatchWorker(p, store, nil, fastStrategy, 2).Run(context.Background(), "s1", makeTasks(1))

	require.Len(t, results, 1)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, domain.ResultSuccess, results[0].Status)
	assert.Equal(t, "j1", results[0].JobID)
}

func TestRunExhaustedRetriesYieldErrorResult(t *testing.T) {
	var calls atomic.Int32
	p := &fakeProvider{fn: func(context.Context, string, string) (*domain.RemovalResult, error) {
		calls.Add(1)
		return nil, errors.New("connection reset")
	}}
	store := progress.NewMemoryStore(0)
	require.NoError(t, store.Create(context.Background(), "s1", 3))

	results := NewBatchWorker(p, store, nil, fastStrategy, 2).Run(context.Background(), "s1", makeTasks(3))

	require.Len(t, results, 3)
	assert.Equal(t, int32(9), calls.Load())
	for _, r := range results {
		assert.Equal(t, domain.ResultError, r.Status)
		assert.Equal(t, r.OriginalURL, r.ProcessedURL)
		assert.Contains(t, r.Message, "connection reset")
	}

	snap, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Completed)
	assert.Equal(t, domain.BatchCompleted, snap.Status)
}

func TestRunDoesNotRetryTerminalErrors(t *testing.T) {
	var calls atomic.Int32
	p := &fakeProvider{fn: func(context.Context, string, string) (*domain.RemovalResult, error) {
		calls.Add(1)
		return nil, &provider.Error{Kind: domain.ErrProviderAuth, StatusCode: 401}
	}}
	store := progress.NewMemoryStore(0)
	require.NoError(t, store.Create(context.Background(), "s1", 1))

	results := NewBatchWorker(p, store, nil, fastStrategy, 2).Run(context.Background(), "s1", makeTasks(1))

	require.Len(t, results, 1)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, results[0].Message, "authentication failed")
}

func TestRunEmptyBatch(t *testing.T) {
	store := progress.NewMemoryStore(0)
	require.NoError(t, store.Create(context.Background(), "s1", 0))
	pub := &recordingPublisher{}

	p := &fakeProvider{fn: func(context.Context, string, string) (*domain.RemovalResult, error) {
		t.Fatal("provider must not be called")
		return nil, nil
	}}
	results := NewBatchWorker(p, store, pub, fastStrategy, 0).Run(context.Background(), "s1", nil)

	assert.Empty(t, results)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.BatchCompleted, pub.events[0].Status)
}

// droppingStore loses the first appended result.
type droppingStore struct {
	*progress.MemoryStore
	dropped atomic.Bool
}

func (s *droppingStore) AppendResult(ctx context.Context, sessionID string, result domain.ProcessingResult) (*domain.ProgressSnapshot, error) {
	if s.dropped.CompareAndSwap(false, true) {
		return nil, errors.New("redis: connection pool timeout")
	}
	return s.MemoryStore.AppendResult(ctx, sessionID, result)
}

func TestRunMarksBatchFailedWhenProgressIsLost(t *testing.T) {
	store := &droppingStore{MemoryStore: progress.NewMemoryStore(0)}
	require.NoError(t, store.Create(context.Background(), "s1", 3))
	pub := &recordingPublisher{}

	p := &fakeProvider{fn: func(_ context.Context, imageURL, _ string) (*domain.RemovalResult, error) {
		return &domain.RemovalResult{ProcessedImageURL: imageURL + "?clean"}, nil
	}}
	results := NewBatchWorker(p, store, pub, fastStrategy, 2).Run(context.Background(), "s1", makeTasks(3))

	require.Len(t, results, 3)

	snap, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Completed)
	assert.Equal(t, domain.BatchError, snap.Status)

	require.NotEmpty(t, pub.events)
	last := pub.events[len(pub.events)-1]
	assert.Equal(t, domain.EventBatchCompleted, last.Type)
	assert.Equal(t, domain.BatchError, last.Status)
	assert.Equal(t, 2, last.Completed)
	assert.Equal(t, 3, last.Total)
}
