package calendar

import (
	"time"
)

// Event is the canonical, provider-independent event shape. It is an
// immutable snapshot taken at fetch time; the provider stays authoritative.
type Event struct {
	ProviderEventID string
	CalendarID      string // provider calendar id
	AccountID       int64
	Summary         string
	Description     string
	Status          string // "confirmed", "tentative", "cancelled"
	Start           time.Time
	End             time.Time
	AllDay          bool
	Updated         time.Time
}

// Intersects reports whether the event's half-open range [Start, End)
// overlaps the half-open range [from, to).
func (e Event) Intersects(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}

// EventInput represents the input for creating or updating a calendar event.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	TimeZone    string
	Attendees   []string
}

// BusyInterval is a time range during which a calendar has at least one
// event. After merging, intervals are non-overlapping and sorted.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the interval overlaps the half-open range
// [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}
