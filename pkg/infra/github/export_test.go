package github

import "time"

// SetTimeNow replaces the clock used for rate limit resets
func SetTimeNow(fn func() time.Time) func() {
	orig := timeNow
	timeNow = fn
	return func() { timeNow = orig }
}

// WithServerURL serves both the API and uploads from the root of a test server
var WithServerURL = withServerURL
