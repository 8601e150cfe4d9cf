package provider

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yokitheyo/wmremover/internal/domain"
)

// DemoProvider never leaves the process; every image "succeeds" unchanged.
type DemoProvider struct {
	delay time.Duration
	seq   atomic.Int64
}

func NewDemoProvider(delay time.Duration) *DemoProvider {
	return &DemoProvider{delay: delay}
}

func (d *DemoProvider) Name() string { return "demo" }

func (d *DemoProvider) RemoveWatermark(ctx context.Context, imageURL, _ string) (*domain.RemovalResult, error) {
	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.delay):
		}
	}
	n := d.seq.Add(1)
	return &domain.RemovalResult{ProcessedImageURL: imageURL, JobID: fmt.Sprintf("demo-%d", n)}, nil
}

func (d *DemoProvider) Ping(context.Context) error { return nil }
