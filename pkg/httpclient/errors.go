package httpclient

import (
	"fmt"
	"time"
)

// RetryableError reports that a request kept failing with a transient status
// after the configured retries. RetryAfter is the delay the server asked for
// (or our own backoff estimate) at the point we gave up.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
