package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSleep captures requested delays without waiting.
func recordSleep(delays *[]time.Duration) Option {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func TestRetrier_Delay(t *testing.T) {
	r := New()
	assert.Equal(t, 2*time.Second, r.Delay(0))
	assert.Equal(t, 4*time.Second, r.Delay(1))
	assert.Equal(t, 8*time.Second, r.Delay(2))
	assert.Equal(t, 32*time.Second, r.Delay(4))
	assert.Equal(t, 60*time.Second, r.Delay(5))
	assert.Equal(t, 60*time.Second, r.Delay(40))
}

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		var delays []time.Duration
		r := New(recordSleep(&delays))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
		assert.Empty(t, delays)
	})

	t.Run("three failures then success waits 14s in total", func(t *testing.T) {
		var delays []time.Duration
		r := New(recordSleep(&delays))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts <= 3 {
				return errors.New("429")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 4, attempts)
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, delays)

		var total time.Duration
		for _, d := range delays {
			total += d
		}
		assert.Equal(t, 14*time.Second, total)
	})

	t.Run("fail after max retries", func(t *testing.T) {
		var delays []time.Duration
		r := New(WithMaxRetries(2), recordSleep(&delays))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("fail")
		})
		assert.EqualError(t, err, "fail")
		assert.Equal(t, 3, attempts) // 1 initial + 2 retries
		assert.Len(t, delays, 2)
	})

	t.Run("non retryable error stops immediately", func(t *testing.T) {
		terminal := errors.New("bad payload")
		var delays []time.Duration
		r := New(recordSleep(&delays), WithRetryable(func(err error) bool {
			return !errors.Is(err, terminal)
		}))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return terminal
		})
		assert.ErrorIs(t, err, terminal)
		assert.Equal(t, 1, attempts)
		assert.Empty(t, delays)
	})

	t.Run("notify sees every retry", func(t *testing.T) {
		var seen []int
		r := New(WithSleep(func(context.Context, time.Duration) error { return nil }),
			WithNotify(func(attempt int, _ time.Duration, _ error) {
				seen = append(seen, attempt)
			}))
		_ = r.Do(context.Background(), func(ctx context.Context) error {
			return errors.New("fail")
		})
		assert.Equal(t, []int{1, 2, 3}, seen)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})
}

func TestRetrier_DoWithData(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		r := New()
		val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", val)
	})

	t.Run("fail returns error", func(t *testing.T) {
		r := New(WithMaxRetries(1), WithInitialInterval(1*time.Millisecond))
		val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
			return "", errors.New("fail")
		})
		assert.Error(t, err)
		assert.Empty(t, val)
	})
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
