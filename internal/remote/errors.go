package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the remote service.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("response error %d: %s", e.StatusCode, string(e.Body))
}

// IsTransient reports whether a remote failure is worth retrying or queueing.
// Server errors (5xx), rate limiting (429), and transport-level failures are
// transient; any other HTTP status is a permanent request error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}
	// No HTTP status means the request never completed: timeouts, connection
	// failures, interrupted bodies.
	return true
}

// IsNotFound reports whether the failure was an HTTP 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
