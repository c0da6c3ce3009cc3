package engine

import (
	"errors"
	"fmt"
)

// UserError is a request the caller got wrong: no linked account, an invalid
// date range. Not retried.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

// AuthError means an account's grant is revoked or expired and cannot be
// refreshed. The user has to re-link the account; retrying cannot help.
type AuthError struct {
	AccountID int64
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("account %d needs to be re-linked: %v", e.AccountID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError means the event was absent across every reachable account and
// calendar.
type NotFoundError struct {
	CalendarID string
	EventID    string
}

func (e *NotFoundError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("calendar %s not found on any linked account", e.CalendarID)
	}
	return fmt.Sprintf("event %s not found in calendar %s on any linked account", e.EventID, e.CalendarID)
}

// ServiceError is an upstream failure (5xx, network, unexpected payload) that
// aborted the request. The message shown to users stays generic; the wrapped
// cause carries the detail for logs.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("calendar service unavailable: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsUserError reports whether err is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsServiceError reports whether err is a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
