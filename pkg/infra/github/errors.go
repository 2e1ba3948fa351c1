package github

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
)

const (
	rateLimitMessagePrefix = "API rate limit exceeded"
	headerRateReset        = "X-RateLimit-Reset"

	// used when the server gives no hint about when to retry
	defaultRateLimitWait = time.Minute
)

// timeNow is replaced in tests
var timeNow = time.Now

// convertError maps go-github errors onto the pipeline error taxonomy
func convertError(err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &types.RateLimitedError{Reset: rle.Rate.Reset.Time}
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		wait := defaultRateLimitWait
		if abuse.RetryAfter != nil {
			wait = *abuse.RetryAfter
		}
		return &types.RateLimitedError{Reset: timeNow().Add(wait)}
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		status := er.Response.StatusCode
		if (status == http.StatusForbidden || status == http.StatusTooManyRequests) &&
			strings.HasPrefix(er.Message, rateLimitMessagePrefix) {
			return &types.RateLimitedError{Reset: parseReset(er.Response.Header)}
		}
		return &types.RemoteError{Status: status, Message: er.Message}
	}

	return err
}

func parseReset(h http.Header) time.Time {
	epoch, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64)
	if err != nil || epoch <= 0 {
		return timeNow().Add(defaultRateLimitWait)
	}
	return time.Unix(epoch, 0)
}
