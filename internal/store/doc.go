// Package store persists linked Google accounts and their synced calendar
// metadata in SQLite.
//
// Accounts are created when a user links a Google Calendar identity and
// mutated on every token refresh. Calendars are a cached projection of the
// provider's calendar list used to decide which calendars participate in
// aggregation; event data itself is never persisted, the provider stays
// authoritative.
package store
