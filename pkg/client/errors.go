package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

var (
	// ErrAuthFailed means the session could not be recovered: the refresh
	// call failed or the retried request was rejected again. The token store
	// has been cleared when this is returned.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNetwork means no response was received.
	ErrNetwork = errors.New("network error")
	// ErrTimeout means the request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrDecode means the response did not match the expected schema.
	ErrDecode = errors.New("unexpected response")
	// ErrSessionEnded means the session a request started in was signed out
	// before the request finished. It is reported inside an *AuthError.
	ErrSessionEnded = errors.New("session ended")
)

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// AuthError is returned when the refresh protocol gives up. It wraps the
// original 401 so callers still see the server's message.
type AuthError struct {
	Err     error // the request's own 401
	Refresh error // why the refresh failed; nil when the retry was rejected
}

func (e *AuthError) Error() string {
	if e.Refresh != nil {
		return fmt.Sprintf("%v: %v (refresh: %v)", ErrAuthFailed, e.Err, e.Refresh)
	}
	return fmt.Sprintf("%v: %v", ErrAuthFailed, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{ErrAuthFailed, e.Err}
}

// Kind is the user-facing category of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthFailed
	KindValidation
	KindConflict
	KindNotFound
	KindServer
	KindNetwork
	KindTimeout
	KindDecode
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindAuthFailed:
		return "auth_failed"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Classify maps an error returned by the client to its Kind.
func Classify(err error) Kind {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAuthFailed):
		return KindAuthFailed
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, domain.ErrInvalid):
		return KindValidation
	case errors.As(err, &httpErr):
		switch {
		case httpErr.StatusCode == http.StatusConflict:
			return KindConflict
		case httpErr.StatusCode == http.StatusNotFound:
			return KindNotFound
		case httpErr.StatusCode >= 500:
			return KindServer
		case httpErr.StatusCode >= 400:
			return KindValidation
		}
	}
	return KindUnknown
}

// Message returns the server-provided message of an HTTP error, or "".
func Message(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	return ""
}

// transportError classifies a failure where no response was received.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
