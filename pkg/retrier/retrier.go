package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 60 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 3
)

// Retrier implements capped exponential backoff. The n-th retry (counting
// from zero) waits min(initial * multiplier^n, max).
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
	retryable       func(error) bool
	notify          func(attempt int, delay time.Duration, err error)
	sleep           func(ctx context.Context, d time.Duration) error
}

// Option defines a function to configure the Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the initial retry interval.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = d
	}
}

// WithMaxInterval sets the maximum retry interval.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxInterval = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithMaxRetries sets the maximum number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0). Disabled by default.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		r.jitter = j
	}
}

// WithRetryable sets the predicate deciding whether an error is worth
// another attempt. Errors it rejects are returned immediately.
func WithRetryable(fn func(error) bool) Option {
	return func(r *Retrier) {
		r.retryable = fn
	}
}

// WithNotify registers a callback invoked before each backoff sleep.
func WithNotify(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(r *Retrier) {
		r.notify = fn
	}
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		r.sleep = fn
	}
}

// New creates a new Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		retryable:       func(error) bool { return true },
		sleep:           Sleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Delay returns the wait before retry number attempt (zero based).
func (r *Retrier) Delay(attempt int) time.Duration {
	interval := float64(r.initialInterval)
	for i := 0; i < attempt; i++ {
		interval *= r.multiplier
		if interval >= float64(r.maxInterval) {
			return r.maxInterval
		}
	}
	if interval > float64(r.maxInterval) {
		return r.maxInterval
	}
	return time.Duration(interval)
}

// MaxRetries returns the configured retry budget
func (r *Retrier) MaxRetries() int {
	return r.maxRetries
}

// Do executes the given function with retries.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= r.maxRetries || !r.retryable(err) {
			return err
		}

		delay := r.withJitter(r.Delay(attempt))
		if r.notify != nil {
			r.notify(attempt+1, delay, err)
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

func (r *Retrier) withJitter(d time.Duration) time.Duration {
	if r.jitter <= 0 {
		return d
	}
	j := (rand.Float64()*2 - 1) * r.jitter * float64(d)
	out := time.Duration(float64(d) + j)
	if out < 0 {
		return 0
	}
	return out
}

// DoWithData executes the given function with retries and returns a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
