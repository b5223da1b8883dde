package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultErrorMessage is shown when a failure carries no usable message.
const DefaultErrorMessage = "Something went wrong"

// Common backend errors, matched through Error.Unwrap
var (
	// ErrBadRequest is returned for 400 responses (validation rejected by the backend).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned for 401 responses: missing or expired session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned for 403 responses.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("backend error")

	// ErrUnexpectedStatus is returned for any other non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrTransport is returned when the backend could not be reached.
	ErrTransport = errors.New("backend unreachable")

	// ErrDecode is returned when a response body could not be decoded.
	ErrDecode = errors.New("invalid response body")
)

// Error wraps a failed backend call with the operation and, when the backend
// sent one, its structured error message.
type Error struct {
	// Op is the call that failed, e.g. "GET /api/products".
	Op string

	// Status is the HTTP status code, 0 when no response was received.
	Status int

	// Name and Message come from the backend's {"error": {...}} envelope.
	Name    string
	Message string

	// Err is the underlying error (one of the sentinels above or a transport error).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("api: %s failed: %s", e.Op, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("api: %s failed with status %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("api: %s failed: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// errorEnvelope is the backend's error body
type errorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
	// Older auth endpoints answer {"message": "..."}
	Message string `json:"message"`
}

func statusError(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return ErrBadRequest
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	default:
		return ErrUnexpectedStatus
	}
}

// FormatError is the single place failures become user-facing text. It
// prefers the backend's structured message, then the error text, then the
// fallback (DefaultErrorMessage when none is given).
func FormatError(err error, fallback ...string) string {
	message := DefaultErrorMessage
	if len(fallback) > 0 && strings.TrimSpace(fallback[0]) != "" {
		message = fallback[0]
	}
	if err == nil {
		return message
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Err != nil {
			return apiErr.Error()
		}
	}

	if text := strings.TrimSpace(err.Error()); text != "" {
		return text
	}
	return message
}
