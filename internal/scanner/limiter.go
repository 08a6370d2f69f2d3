package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const maxLimiterCapacity = 50

// ErrTimeout is returned by RateLimiter.Execute when the work exceeds its
// deadline. Sibling executions are unaffected.
var ErrTimeout = errors.New("execution timed out")

// RateLimiter bounds concurrent in-flight work with a counting admission
// gate and enforces a per-call deadline. It knows nothing about URLs,
// protocols, or results.
type RateLimiter struct {
	sem      *semaphore.Weighted
	launch   *rate.Limiter
	timeout  time.Duration
	capacity int
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLaunchRate paces work admission to at most perSecond launches per
// second, on top of the concurrency gate.
func WithLaunchRate(perSecond int) LimiterOption {
	return func(l *RateLimiter) {
		if perSecond > 0 {
			l.launch = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// NewRateLimiter creates a limiter admitting at most capacity concurrent
// executions, each bounded by the default timeout unless overridden per
// call.
func NewRateLimiter(capacity int, timeout time.Duration, opts ...LimiterOption) (*RateLimiter, error) {
	if capacity < 1 || capacity > maxLimiterCapacity {
		return nil, fmt.Errorf("capacity must be between 1 and %d", maxLimiterCapacity)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}

	l := &RateLimiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		timeout:  timeout,
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Capacity returns the maximum number of concurrent executions.
func (l *RateLimiter) Capacity() int { return l.capacity }

// Timeout returns the default per-execution deadline.
func (l *RateLimiter) Timeout() time.Duration { return l.timeout }

// Execute acquires an admission slot (blocking until one is available),
// then runs work under a deadline of timeout if positive, else the default.
// The slot is released once work returns, success or failure. A work
// function exceeding its deadline yields ErrTimeout; the function is
// expected to honor context cancellation and return promptly.
func (l *RateLimiter) Execute(ctx context.Context, timeout time.Duration, work func(context.Context) error) error {
	if l.launch != nil {
		if err := l.launch.Wait(ctx); err != nil {
			return err
		}
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	if timeout <= 0 {
		timeout = l.timeout
	}
	workCtx, cancel := context.WithTimeout(ctx, timeout)

	done := make(chan error, 1)
	go func() {
		defer l.sem.Release(1)
		defer cancel()
		done <- work(workCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-workCtx.Done():
		if errors.Is(workCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return workCtx.Err()
	}
}
