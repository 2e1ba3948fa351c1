package types_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/shipyard/pkg/domain/types"
)

func TestIsNotFound(t *testing.T) {
	wrapped := goerr.Wrap(&types.RemoteError{Status: http.StatusNotFound, Message: "Not Found"}, "failed to get blob")
	gt.True(t, types.IsNotFound(wrapped))

	other := goerr.Wrap(&types.RemoteError{Status: http.StatusUnprocessableEntity}, "failed to upload")
	gt.False(t, types.IsNotFound(other))

	gt.False(t, types.IsNotFound(goerr.New("plain")))
}

func TestAsRateLimited(t *testing.T) {
	reset := time.Unix(1700000000, 0)
	err := goerr.Wrap(&types.RateLimitedError{Reset: reset}, "failed to get tree")

	rl := types.AsRateLimited(err)
	gt.NotNil(t, rl)
	gt.Equal(t, rl.Reset, reset)

	gt.True(t, types.AsRateLimited(goerr.New("plain")) == nil)
}

func TestRateLimitedError_WaitDuration(t *testing.T) {
	now := time.Unix(1700000000, 0)

	rl := &types.RateLimitedError{Reset: now.Add(3 * time.Second)}
	gt.Equal(t, rl.WaitDuration(now), 3*time.Second)

	past := &types.RateLimitedError{Reset: now.Add(-10 * time.Second)}
	gt.Equal(t, past.WaitDuration(now), time.Duration(0))
}
