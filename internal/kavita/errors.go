package kavita

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies an API failure for caller-side handling and display
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"            // request never reached the server
	KindTimeout           ErrorKind = "timeout"            // request exceeded the fixed deadline
	KindUnauthorized      ErrorKind = "unauthorized"       // credentials rejected and refresh failed or was not possible
	KindForbidden         ErrorKind = "forbidden"          // authenticated but insufficiently privileged
	KindNotFound          ErrorKind = "not_found"          // requested resource absent
	KindServerError       ErrorKind = "server_error"       // 5xx class, transient; not auto-retried
	KindMalformedResponse ErrorKind = "malformed_response" // 2xx payload of unrecognized shape
)

// APIError represents a classified error from the media server API
type APIError struct {
	Kind     ErrorKind
	Status   int
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("kavita API error: %s (kind: %s, status: %d, endpoint: %s)", e.Message, e.Kind, e.Status, e.Endpoint)
	}
	return fmt.Sprintf("kavita API error: %s (kind: %s, endpoint: %s)", e.Message, e.Kind, e.Endpoint)
}

// IsKind reports whether err is an *APIError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// classifyStatus maps a non-2xx HTTP status to an APIError
func classifyStatus(status int, endpoint string, message string) *APIError {
	kind := KindServerError
	switch {
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case status == http.StatusForbidden:
		kind = KindForbidden
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 500:
		kind = KindServerError
	default:
		// Other 4xx statuses carry no dedicated kind; surface as server error
		// with the status preserved for the caller.
		kind = KindServerError
	}

	if message == "" {
		message = http.StatusText(status)
	}

	return &APIError{
		Kind:     kind,
		Status:   status,
		Endpoint: endpoint,
		Message:  message,
	}
}

// classifyTransport maps a transport-level failure (DNS, refused connection,
// deadline) to an APIError, distinguishing timeouts from other network errors.
func classifyTransport(err error, endpoint string) *APIError {
	kind := KindNetwork

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}

	return &APIError{
		Kind:     kind,
		Endpoint: endpoint,
		Message:  err.Error(),
	}
}
