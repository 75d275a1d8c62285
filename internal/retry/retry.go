// Package retry runs a single remote operation with bounded attempts and
// exponential backoff between them.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy configures one call site.
type Policy struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries int

	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration

	// BackoffFactor multiplies the delay after every wait.
	BackoffFactor float64
}

// Policies used by the registry upload.
var (
	// RecordPolicy applies to record creation.
	RecordPolicy = Policy{MaxRetries: 3, InitialDelay: 1 * time.Second, BackoffFactor: 2.0}

	// FieldPolicy applies to field creation, the data-bearing call.
	FieldPolicy = Policy{MaxRetries: 5, InitialDelay: 2 * time.Second, BackoffFactor: 1.5}
)

// TotalWait returns the time spent waiting when every attempt fails.
func (p Policy) TotalWait() time.Duration {
	var total time.Duration
	delay := p.InitialDelay
	for i := 0; i < p.attempts()-1; i++ {
		total += delay
		delay = nextDelay(delay, p.BackoffFactor)
	}
	return total
}

func (p Policy) attempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// NotifyFunc is called after each failed attempt that will be retried.
type NotifyFunc func(attempt int, err error, wait time.Duration)

type options struct {
	sleep  SleepFunc
	notify NotifyFunc
}

// Option customizes Do.
type Option func(*options)

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) {
		o.sleep = fn
	}
}

// WithNotify registers a callback for failed attempts that will be retried.
func WithNotify(fn NotifyFunc) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// Sleep blocks for d, returning early with the context error if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls op until it succeeds or policy.MaxRetries attempts have failed.
// Callers only observe the final outcome; intermediate failures go to the
// notify callback.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error
	delay := policy.InitialDelay
	attempts := policy.attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		if o.notify != nil {
			o.notify(attempt, err, delay)
		}
		if err := o.sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = nextDelay(delay, policy.BackoffFactor)
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func nextDelay(current time.Duration, factor float64) time.Duration {
	return time.Duration(float64(current) * factor)
}
