package remote

import (
	"fmt"
	"strings"
)

// TransportError is a network-level failure: no HTTP status was obtained.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Body carries a best-effort diagnostic; a
// failed body read degrades to a placeholder rather than masking the status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("api error (status=%d): %s", e.StatusCode, msg)
}

// ShapeError is a structurally unacceptable response. It is terminal for the
// run: shape failures happen after the retry loop and are never retried.
type ShapeError struct {
	Reason string
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Err == nil {
		return "response shape error: " + e.Reason
	}
	return fmt.Sprintf("response shape error: %s: %v", e.Reason, e.Err)
}
func (e *ShapeError) Unwrap() error { return e.Err }

// ExhaustedError reports a spent retry budget. It wraps the last underlying
// failure so the orchestrator can log the complete causal chain.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("remote call failed after %d attempts: %v", e.Attempts, e.Last)
}
func (e *ExhaustedError) Unwrap() error { return e.Last }
