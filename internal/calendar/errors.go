package calendar

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Sentinel errors callers match with errors.Is to decide between retry,
// skip, and abort.
var (
	// ErrUnauthorized means the access token was rejected. Callers should
	// refresh the token once and retry once.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means this calendar or event is not accessible from this
	// account. Callers should skip it, not retry.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the calendar or event does not exist for this
	// account. Callers should skip it, not retry.
	ErrNotFound = errors.New("not found")

	// ErrUpstream means the provider failed (5xx, network, unexpected
	// payload). Callers should abort the whole request rather than silently
	// drop data.
	ErrUpstream = errors.New("calendar provider unavailable")
)

// APIError wraps a failed provider call with the HTTP status the provider
// returned. StatusCode 0 means the request never produced an HTTP response
// (network error, cancellation).
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is maps the status code onto the sentinel taxonomy so callers can use
// errors.Is(err, ErrForbidden) without inspecting googleapi internals.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == 401
	case ErrForbidden:
		return e.StatusCode == 403
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrUpstream:
		return e.StatusCode != 401 && e.StatusCode != 403 && e.StatusCode != 404
	}
	return false
}

// classify wraps a raw provider error into an APIError. Context cancellation
// passes through untouched so callers can distinguish it from provider
// failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{Op: op, StatusCode: apiErr.Code, Err: err}
	}
	return &APIError{Op: op, Err: err}
}
