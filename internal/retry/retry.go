// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"math"
	"time"

	goretry "github.com/sethvargo/go-retry"
	wbfretry "github.com/wb-go/wbf/retry"
)

// DefaultStrategy is used for infrastructure calls that have no dedicated config.
var DefaultStrategy = wbfretry.Strategy{
	Attempts: 3,
	Delay:    time.Second,
	Backoff:  2,
}

// NewStrategy builds a strategy that makes maxRetries+1 attempts.
func NewStrategy(maxRetries int, delay time.Duration, backoff float64) wbfretry.Strategy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return wbfretry.Strategy{
		Attempts: maxRetries + 1,
		Delay:    delay,
		Backoff:  backoff,
	}
}

type options struct {
	retryable func(error) bool
	notify    func(attempt int, err error, wait time.Duration)
}

type Option func(*options)

// WithClassifier stops retrying as soon as retryable returns false.
func WithClassifier(retryable func(error) bool) Option {
	return func(o *options) { o.retryable = retryable }
}

// WithNotify is called before every wait with the 1-based number of the failed attempt.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// Do calls fn until it succeeds, the attempts are spent, or ctx is done.
// The n-th wait is Delay*Backoff^(n-1). The last error is returned as is.
func Do(ctx context.Context, s wbfretry.Strategy, fn func(ctx context.Context) error, opts ...Option) error {
	o := options{retryable: func(error) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		attempt int
		lastErr error
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= attempts {
			return 0, true
		}
		wait := Delay(s, attempt)
		if o.notify != nil {
			o.notify(attempt, lastErr, wait)
		}
		return wait, false
	})

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !o.retryable(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
}

// Delay returns the wait after the given failed attempt (1-based).
func Delay(s wbfretry.Strategy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := s.Backoff
	if backoff < 1 {
		backoff = 1
	}
	return time.Duration(float64(s.Delay) * math.Pow(backoff, float64(attempt-1)))
}
