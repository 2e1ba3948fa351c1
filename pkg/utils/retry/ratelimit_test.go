package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/m-mizutani/shipyard/pkg/utils/retry"
)

type fakeSleeper struct {
	waits []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func TestRateLimit_Do(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }

	t.Run("returns nil without retry on success", func(t *testing.T) {
		sleeper := &fakeSleeper{}
		r := retry.NewRateLimit(retry.WithClock(clock), retry.WithSleeper(sleeper.Sleep))

		calls := 0
		err := r.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return nil
		})
		gt.NoError(t, err)
		gt.Equal(t, calls, 1)
		gt.A(t, sleeper.waits).Length(0)
	})

	t.Run("waits until reset then retries", func(t *testing.T) {
		sleeper := &fakeSleeper{}
		r := retry.NewRateLimit(retry.WithClock(clock), retry.WithSleeper(sleeper.Sleep))

		calls := 0
		err := r.Do(context.Background(), "get tree", func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return goerr.Wrap(&types.RateLimitedError{Reset: now.Add(3 * time.Second)}, "failed to get tree")
			}
			return nil
		})
		gt.NoError(t, err)
		gt.Equal(t, calls, 2)
		gt.A(t, sleeper.waits).Length(1)
		gt.Equal(t, sleeper.waits[0], 3*time.Second)
	})

	t.Run("past reset does not wait", func(t *testing.T) {
		sleeper := &fakeSleeper{}
		r := retry.NewRateLimit(retry.WithClock(clock), retry.WithSleeper(sleeper.Sleep))

		calls := 0
		err := r.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return &types.RateLimitedError{Reset: now.Add(-time.Minute)}
			}
			return nil
		})
		gt.NoError(t, err)
		gt.Equal(t, sleeper.waits[0], time.Duration(0))
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		sleeper := &fakeSleeper{}
		r := retry.NewRateLimit(retry.WithClock(clock), retry.WithSleeper(sleeper.Sleep))

		calls := 0
		remote := &types.RemoteError{Status: 500, Message: "boom"}
		err := r.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return remote
		})
		gt.Error(t, err)
		gt.Equal(t, calls, 1)
		gt.True(t, errors.Is(err, remote))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		sleeper := &fakeSleeper{}
		r := retry.NewRateLimit(
			retry.WithClock(clock),
			retry.WithSleeper(sleeper.Sleep),
			retry.WithMaxRetries(2),
		)

		calls := 0
		err := r.Do(context.Background(), "op", func(ctx context.Context) error {
			calls++
			return &types.RateLimitedError{Reset: now.Add(time.Second)}
		})
		gt.Error(t, err)
		gt.Equal(t, calls, 3)
		gt.A(t, sleeper.waits).Length(2)
		gt.True(t, goerr.HasTag(err, types.ErrTagRateLimitExhausted))
		gt.True(t, types.AsRateLimited(err) == nil)
	})
}

func TestDoValue(t *testing.T) {
	now := time.Unix(1700000000, 0)
	sleeper := &fakeSleeper{}
	r := retry.NewRateLimit(retry.WithClock(func() time.Time { return now }), retry.WithSleeper(sleeper.Sleep))

	calls := 0
	v, err := retry.DoValue(context.Background(), r, "op", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &types.RateLimitedError{Reset: now.Add(time.Second)}
		}
		return "ok", nil
	})
	gt.NoError(t, err)
	gt.Equal(t, v, "ok")
}

func TestSleep(t *testing.T) {
	t.Run("blocks for the duration", func(t *testing.T) {
		start := time.Now()
		gt.NoError(t, retry.Sleep(context.Background(), 50*time.Millisecond))
		gt.True(t, time.Since(start) >= 50*time.Millisecond)
	})

	t.Run("returns when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retry.Sleep(ctx, time.Hour)
		gt.True(t, errors.Is(err, context.Canceled))
	})
}
