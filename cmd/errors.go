package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"posdash/internal/api"
	"posdash/internal/resource"
	"posdash/internal/session"
)

// reportedError marks a failure the user has already seen as a notice.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// reported wraps err so Execute exits non-zero without printing it again.
func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// handleAPIError provides user-friendly error messages for backend failures
func handleAPIError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Backend operation failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out. Try increasing POSDASH_API_TIMEOUT")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case errors.Is(err, session.ErrNotSignedIn):
		return fmt.Errorf("not signed in. Run 'posdash login' first")
	case errors.Is(err, api.ErrUnauthorized):
		return fmt.Errorf("session expired or credentials rejected. Run 'posdash login' again")
	case errors.Is(err, api.ErrForbidden):
		return fmt.Errorf("permission denied: %s", api.FormatError(err))
	case errors.Is(err, api.ErrNotFound):
		return fmt.Errorf("record not found")
	case errors.Is(err, api.ErrTransport):
		return fmt.Errorf("could not reach the backend. Check POSDASH_API_URL and your network connection: %w", err)
	case errors.Is(err, resource.ErrInvalidPageSize):
		return fmt.Errorf("page size must be one of %s", joinInts(resource.DefaultPageSizes))
	default:
		return errors.New(api.FormatError(err))
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
