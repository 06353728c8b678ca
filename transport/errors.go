package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for transport operations.
var (
	ErrNilFunc          = errors.New("transport: network function is nil")
	ErrNoResponse       = errors.New("transport: no response received")
	ErrPanic            = errors.New("transport: network function panicked")
	ErrUnknownOperation = errors.New("transport: unknown operation")
	ErrInvalidParams    = errors.New("transport: invalid operation parameters")
	ErrBodyTooLarge     = errors.New("transport: response body too large")
)

// NetworkError reports that no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transport: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a response with a non-success status.
type HTTPError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("transport: %s: http status %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// DecodeError reports a response body that could not be parsed into the
// expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("transport: %s: decode error: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is, or wraps, a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDecode reports whether err is, or wraps, a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// HTTPStatus returns the status code carried by an HTTPError in err's chain.
func HTTPStatus(err error) (int, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status, true
	}
	return 0, false
}

// IsHTTPStatus reports whether err carries an HTTPError with the given status.
func IsHTTPStatus(err error, status int) bool {
	got, ok := HTTPStatus(err)
	return ok && got == status
}

// IsTransient reports whether a caller may reasonably retry after err:
// network failures other than caller cancellation, 429, and 5xx responses.
// Failures raised before dispatch (unknown operation, invalid parameters,
// missing network function) never succeed on retry and are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if status, ok := HTTPStatus(err); ok {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	if !IsNetwork(err) {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrUnknownOperation),
		errors.Is(err, ErrInvalidParams),
		errors.Is(err, ErrNilFunc):
		return false
	}
	return true
}
