// Package calendar is the gateway to the Google Calendar API.
//
// It wraps calendar list, event CRUD, and free/busy queries behind a client
// bound to one access token, normalizes raw provider payloads into the
// canonical Event shape, and maps provider failures onto a small error
// taxonomy (ErrUnauthorized, ErrForbidden, ErrNotFound, ErrUpstream) so the
// engine can decide between refresh-and-retry, skip, and abort without
// inspecting provider internals.
package calendar
