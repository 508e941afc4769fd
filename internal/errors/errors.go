package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Moment client
var (
	// Credential errors
	ErrNoCredentials       = errors.New("no stored credentials")
	ErrNoAccessToken       = errors.New("no access token available")
	ErrAuthExpired         = errors.New("authentication expired")
	ErrNoRefreshToken      = fmt.Errorf("no refresh token available: %w", ErrAuthExpired)
	ErrRefreshTokenExpired = fmt.Errorf("refresh token expired: %w", ErrAuthExpired)
	ErrInvalidTokenPair    = errors.New("invalid token pair")

	// Response errors
	ErrEmptyBody = errors.New("empty response body")

	// Realtime errors
	ErrUnknownFrame = errors.New("unknown frame type")
	ErrClientClosed = errors.New("client closed")
	ErrNotConnected = errors.New("not connected")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TransportError is returned when a request never produced an HTTP response:
// DNS failures, refused connections, timeouts.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for non-2xx responses. Body holds at most
// maxErrorBody bytes of the response.
type HTTPStatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// DecodeError is returned when a body that must be present is empty or malformed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProtocolError describes a realtime frame that could not be dispatched.
type ProtocolError struct {
	Type string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("realtime frame: %v", e.Err)
	}
	return fmt.Sprintf("realtime frame %q: %v", e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// HTTPStatusError.
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}
