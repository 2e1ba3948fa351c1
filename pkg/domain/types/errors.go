package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrTagConfig marks a ConfigurationError: the run cannot start.
	ErrTagConfig = goerr.NewTag("configuration")

	// ErrTagUnsafePath marks a tree entry whose path would escape the destination.
	ErrTagUnsafePath = goerr.NewTag("unsafe_path")

	// ErrTagRateLimitExhausted marks an operation that stayed rate limited after all retries.
	// It is fatal and no longer matches AsRateLimited, so callers up the stack do not retry again.
	ErrTagRateLimitExhausted = goerr.NewTag("rate_limit_exhausted")
)

// RemoteError is a non-2xx response from GitHub other than a rate limit.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: status=%d message=%s", e.Status, e.Message)
}

// RateLimitedError indicates quota exhaustion. The operation may be retried after Reset.
type RateLimitedError struct {
	Reset time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.Reset.UTC().Format(time.RFC3339))
}

// WaitDuration returns max(0, Reset - now).
func (e *RateLimitedError) WaitDuration(now time.Time) time.Duration {
	d := e.Reset.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// BuildStepFailedError is returned when an external build step exits non-zero
// or cannot be started. ExitCode is -1 when the process never ran, and Err
// holds the start failure.
type BuildStepFailedError struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *BuildStepFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build step %q failed to start: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("build step %q failed with exit code %d", e.Step, e.ExitCode)
}

func (e *BuildStepFailedError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err carries a 404 RemoteError.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// AsRateLimited extracts a RateLimitedError from err, or returns nil.
func AsRateLimited(err error) *RateLimitedError {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl
	}
	return nil
}
