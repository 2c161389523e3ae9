// Package retry provides a pluggable retry mechanism for HTTP requests, used
// by the transport component to ride out transient network/server failures
// without aborting a whole multi-repository run.
//
// Grounded on retry/retrier.go: same Retrier interface, NoopRetrier, and
// ExponentialBackoffRetrier shape; Do's default here is HTTP-aware (see
// do.go). The core fetch-deepen loop (package
// deepen) follows the same attempt-indexed, capped-growth shape for its
// depth schedule, but computes a depth rather than a delay and does not
// share code with this package.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/nanoci/shalo/ciclient/errs"
)

// Retrier decides whether and how long to wait before retrying a failed
// operation.
type Retrier interface {
	// ShouldRetry reports whether attempt (1-indexed) should be retried
	// given err.
	ShouldRetry(err error, attempt int) bool
	// Wait blocks until the next attempt should start, or ctx is done.
	Wait(ctx context.Context, attempt int) error
	// MaxAttempts returns the maximum number of attempts, including the
	// first.
	MaxAttempts() int
}

// NoopRetrier never retries. NewHTTPRetrier falls back to it when given a
// nil wrapped retrier, and tests inject it via ToContext for single-attempt
// behavior.
type NoopRetrier struct{}

func (r *NoopRetrier) ShouldRetry(err error, attempt int) bool     { return false }
func (r *NoopRetrier) Wait(ctx context.Context, attempt int) error { return nil }
func (r *NoopRetrier) MaxAttempts() int                            { return 1 }

// ExponentialBackoffRetrier retries on network errors, timeouts, and 5xx/429
// transport errors, backing off geometrically between attempts.
type ExponentialBackoffRetrier struct {
	MaxAttemptsValue int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	Jitter           bool
}

// NewExponentialBackoffRetrier returns a retrier with sane CI defaults: 3
// attempts, 100ms initial delay, 5s cap, 2x multiplier, jitter on.
func NewExponentialBackoffRetrier() *ExponentialBackoffRetrier {
	return &ExponentialBackoffRetrier{
		MaxAttemptsValue: 3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		Jitter:           true,
	}
}

// ShouldRetry retries transport failures that look transient (no status
// code at all, 5xx, or 429) and network timeouts. 4xx transport errors and
// context cancellation are never retried.
func (r *ExponentialBackoffRetrier) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}

	if maxAttempts := r.MaxAttempts(); maxAttempts > 0 && attempt >= maxAttempts {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var transportErr *errs.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.StatusCode != 0 && transportErr.StatusCode < 500 && transportErr.StatusCode != 429 {
			return false
		}
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// Wait waits before the next retry attempt using exponential backoff.
func (r *ExponentialBackoffRetrier) Wait(ctx context.Context, attempt int) error {
	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt-1))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter {
		jitter := rand.Float64() * delay
		delay = delay*0.5 + jitter*0.5
	}

	timer := time.NewTimer(time.Duration(delay))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MaxAttempts returns the maximum number of attempts.
func (r *ExponentialBackoffRetrier) MaxAttempts() int {
	if r.MaxAttemptsValue <= 0 {
		return 3
	}
	return r.MaxAttemptsValue
}

func (r *ExponentialBackoffRetrier) WithMaxAttempts(attempts int) *ExponentialBackoffRetrier {
	r.MaxAttemptsValue = attempts
	return r
}

func (r *ExponentialBackoffRetrier) WithInitialDelay(delay time.Duration) *ExponentialBackoffRetrier {
	r.InitialDelay = delay
	return r
}

func (r *ExponentialBackoffRetrier) WithMaxDelay(delay time.Duration) *ExponentialBackoffRetrier {
	r.MaxDelay = delay
	return r
}

func (r *ExponentialBackoffRetrier) WithMultiplier(multiplier float64) *ExponentialBackoffRetrier {
	r.Multiplier = multiplier
	return r
}

func (r *ExponentialBackoffRetrier) WithJitter() *ExponentialBackoffRetrier {
	r.Jitter = true
	return r
}

func (r *ExponentialBackoffRetrier) WithoutJitter() *ExponentialBackoffRetrier {
	r.Jitter = false
	return r
}
