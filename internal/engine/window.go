package engine

import (
	"fmt"
	"time"
)

// dateLayout is the wire format for window boundaries.
const dateLayout = "2006-01-02"

// Window is the local date range, with timezone, over which events or
// availability are requested. EndLocal is exclusive: the start of the day
// after EndDate, so a single-day window covers exactly that day.
type Window struct {
	StartDate  string
	EndDate    string
	Location   *time.Location
	StartLocal time.Time
	EndLocal   time.Time
}

// ParseWindow builds a Window from local dates. endDate may equal startDate
// (single day) but must not precede it.
func ParseWindow(startDate, endDate string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if endDate == "" {
		endDate = startDate
	}

	start, err := time.ParseInLocation(dateLayout, startDate, loc)
	if err != nil {
		return Window{}, &UserError{Msg: fmt.Sprintf("invalid start date %q, want YYYY-MM-DD", startDate)}
	}
	end, err := time.ParseInLocation(dateLayout, endDate, loc)
	if err != nil {
		return Window{}, &UserError{Msg: fmt.Sprintf("invalid end date %q, want YYYY-MM-DD", endDate)}
	}
	if end.Before(start) {
		return Window{}, &UserError{Msg: fmt.Sprintf("end date %s precedes start date %s", endDate, startDate)}
	}

	return Window{
		StartDate:  startDate,
		EndDate:    endDate,
		Location:   loc,
		StartLocal: start,
		EndLocal:   end.AddDate(0, 0, 1),
	}, nil
}

// WindowFromTimes builds a Window from explicit instants, used by callers
// that already have a concrete range rather than local dates.
func WindowFromTimes(start, end time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if end.Before(start) {
		return Window{}, &UserError{Msg: "window end precedes window start"}
	}
	start = start.In(loc)
	end = end.In(loc)
	return Window{
		StartDate:  start.Format(dateLayout),
		EndDate:    end.Format(dateLayout),
		Location:   loc,
		StartLocal: start,
		EndLocal:   end,
	}, nil
}

// UTCStart returns the window's lower bound as a UTC instant.
func (w Window) UTCStart() time.Time { return w.StartLocal.UTC() }

// UTCEnd returns the window's exclusive upper bound as a UTC instant.
func (w Window) UTCEnd() time.Time { return w.EndLocal.UTC() }

// Duration returns the total window length.
func (w Window) Duration() time.Duration { return w.EndLocal.Sub(w.StartLocal) }

func (w Window) String() string {
	tz := "UTC"
	if w.Location != nil {
		tz = w.Location.String()
	}
	return fmt.Sprintf("%s..%s (%s)", w.StartDate, w.EndDate, tz)
}
