package mlserver

import (
	"errors"
	"fmt"
)

// Kind classifies a scoring-service failure. Every failure a Client operation
// can produce maps onto exactly one kind; nothing else crosses the boundary.
type Kind int

const (
	// KindConnectTimeout means the connection could not be established in time.
	KindConnectTimeout Kind = iota
	// KindReadTimeout means the server accepted the request but did not
	// respond in time. ML inference is slow, so the limits are generous.
	KindReadTimeout
	// KindConnectionRefused means the server could not be reached at all. As a
	// side effect the availability flag is latched to unavailable.
	KindConnectionRefused
	// KindServerError is a non-2xx response, or a 2xx carrying an error envelope.
	KindServerError
	// KindMalformedResponse is a 2xx response that is unparseable or missing
	// required fields. Treated like a server error by callers.
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindConnectTimeout:
		return "connect_timeout"
	case KindReadTimeout:
		return "read_timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindServerError:
		return "server_error"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is the normalized failure value returned by every Client operation.
type Error struct {
	Kind   Kind
	Status int
	Body   string
	cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnectTimeout:
		return "connect timeout: the scoring server did not accept the connection in time"
	case KindReadTimeout:
		return "server timeout: the scoring server is taking too long to respond"
	case KindConnectionRefused:
		return "connection error: cannot reach the scoring server"
	case KindServerError:
		if e.Body != "" {
			return fmt.Sprintf("scoring server returned status %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("scoring server returned status %d", e.Status)
	case KindMalformedResponse:
		if e.Body != "" {
			return fmt.Sprintf("malformed response from the scoring server: %s", e.Body)
		}
		return "malformed response from the scoring server"
	default:
		return "scoring server error"
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the failure kind from err when it carries one.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, true
	}

	return 0, false
}
