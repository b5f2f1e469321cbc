package completion

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when a streaming call, including consumption of the
// stream, exceeds the configured per-call timeout.
var ErrTimeout = errors.New("upstream completion timed out")

// UpstreamError reports any non-timeout upstream failure. Detail is for
// internal logging only and must never reach an external caller.
type UpstreamError struct {
	StatusCode int
	Detail     string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("upstream error: %s", e.Detail)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}
