package calendar

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/whenfree/whenfree/internal/store"
)

// NormalizeEvent converts a raw provider event into the canonical Event.
//
// Start/end are resolved in the event's own timeZone when it declares one,
// otherwise in defaultLoc. All-day events become a half-open
// midnight-to-midnight range in that zone (the provider's all-day end date is
// already exclusive). Missing summary/description stay empty strings so
// downstream code never sees a null.
func NormalizeEvent(raw *gcal.Event, cal store.Calendar, defaultLoc *time.Location) Event {
	e := Event{
		CalendarID: cal.ProviderCalendarID,
		AccountID:  cal.AccountID,
	}
	if raw == nil {
		return e
	}

	e.ProviderEventID = raw.Id
	e.Summary = raw.Summary
	e.Description = raw.Description
	e.Status = raw.Status

	if raw.Updated != "" {
		if t, err := time.Parse(time.RFC3339, raw.Updated); err == nil {
			e.Updated = t
		}
	}

	e.Start, e.AllDay = resolveEdge(raw.Start, defaultLoc)
	e.End, _ = resolveEdge(raw.End, defaultLoc)

	return e
}

// resolveEdge resolves one event boundary to an instant and reports whether
// it was a date-only (all-day) boundary.
func resolveEdge(edge *gcal.EventDateTime, defaultLoc *time.Location) (time.Time, bool) {
	if edge == nil {
		return time.Time{}, false
	}

	loc := defaultLoc
	if loc == nil {
		loc = time.UTC
	}
	if edge.TimeZone != "" {
		if l, err := time.LoadLocation(edge.TimeZone); err == nil {
			loc = l
		}
	}

	if edge.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edge.DateTime); err == nil {
			return t.In(loc), false
		}
		return time.Time{}, false
	}

	if edge.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", edge.Date, loc); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// toStoreCalendar converts a provider calendar list entry into the persisted
// calendar shape. The account id is filled in by the caller.
func toStoreCalendar(entry *gcal.CalendarListEntry) store.Calendar {
	if entry == nil {
		return store.Calendar{}
	}
	return store.Calendar{
		ProviderCalendarID: entry.Id,
		Summary:            entry.Summary,
		Color:              entry.BackgroundColor,
		Primary:            entry.Primary,
		AccessRole:         entry.AccessRole,
		Hidden:             entry.Hidden,
	}
}
