package retry

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
)

// DefaultMaxRetries is the number of rate limit waits allowed per operation
const DefaultMaxRetries = 10

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// RateLimit retries an operation after the remote quota resets. Any error
// other than types.RateLimitedError is returned as is.
type RateLimit struct {
	maxRetries int
	now        func() time.Time
	sleep      Sleeper
}

// Option is a functional option for RateLimit
type Option func(*RateLimit)

// WithMaxRetries sets the number of waits allowed before giving up
func WithMaxRetries(n int) Option {
	return func(r *RateLimit) {
		r.maxRetries = n
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *RateLimit) {
		r.now = now
	}
}

// WithSleeper replaces the blocking wait
func WithSleeper(s Sleeper) Option {
	return func(r *RateLimit) {
		r.sleep = s
	}
}

// NewRateLimit creates a RateLimit retrier
func NewRateLimit(opts ...Option) *RateLimit {
	r := &RateLimit{
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	return r
}

// Do calls fn until it returns something other than a rate limit error,
// sleeping until the reported reset between attempts.
func (r *RateLimit) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logger := ctxlog.From(ctx)

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		rl := types.AsRateLimited(err)
		if rl == nil {
			return err
		}

		if attempt >= r.maxRetries {
			return goerr.New("rate limit retries exhausted",
				goerr.T(types.ErrTagRateLimitExhausted),
				goerr.V("operation", op),
				goerr.V("attempts", attempt+1),
				goerr.V("reset", rl.Reset),
				goerr.V("last_error", err.Error()),
			)
		}

		wait := rl.WaitDuration(r.now())
		logger.Warn("Rate limit exceeded, waiting for reset",
			"operation", op,
			"wait_seconds", int64(wait.Seconds()),
			"reset", rl.Reset,
			"attempt", attempt+1,
		)

		if err := r.sleep(ctx, wait); err != nil {
			return goerr.Wrap(err, "interrupted while waiting for rate limit reset",
				goerr.V("operation", op),
			)
		}
	}
}

// DoValue is Do for operations that return a value
func DoValue[T any](ctx context.Context, r *RateLimit, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Sleep waits for d without busy-waiting. It returns ctx.Err() if ctx ends first.
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
