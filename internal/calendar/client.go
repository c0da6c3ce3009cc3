package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/store"
)

// eventsPageSize bounds one events page. Pages are concatenated before
// returning, callers never see partial pages.
const eventsPageSize = 250

// Client wraps the Google Calendar service for one access token.
//
// All reads are idempotent. Errors surface through the package taxonomy
// (ErrUnauthorized, ErrForbidden, ErrNotFound, ErrUpstream); token refresh on
// 401 is the caller's responsibility.
type Client struct {
	svc     *gcal.Service
	metrics *instrumentation.Metrics
}

// NewClient creates a Calendar client on top of a token-bearing HTTP client.
// Extra options (e.g. a test endpoint) are appended after the HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	allOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gcal.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, metrics: metrics}, nil
}

// ListCalendars lists all calendars with at least reader access, following
// pagination until no continuation token remains.
func (c *Client) ListCalendars(ctx context.Context) ([]store.Calendar, error) {
	start := time.Now()

	var calendars []store.Calendar
	pageToken := ""
	for {
		call := c.svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			err = classify("calendars.list", err)
			c.record(ctx, "calendars.list", start, err)
			return nil, err
		}

		for _, entry := range list.Items {
			cal := toStoreCalendar(entry)
			if !cal.CanRead() {
				continue
			}
			calendars = append(calendars, cal)
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.record(ctx, "calendars.list", start, nil)
	return calendars, nil
}

// ListEvents lists raw events in a calendar within [timeMin, timeMax),
// expanded to single events and ordered by start time. All pages are
// concatenated before returning.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	start := time.Now()

	var events []*gcal.Event
	pageToken := ""
	for {
		call := c.svc.Events.List(calendarID).
			Context(ctx).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(eventsPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			err = classify("events.list", err)
			c.record(ctx, "events.list", start, err)
			return nil, err
		}

		events = append(events, page.Items...)

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.record(ctx, "events.list", start, nil)
	return events, nil
}

// GetEvent retrieves a specific raw event by ID.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*gcal.Event, error) {
	start := time.Now()

	event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		err = classify("events.get", err)
		c.record(ctx, "events.get", start, err)
		return nil, err
	}

	c.record(ctx, "events.get", start, nil)
	return event, nil
}

// CreateEvent creates a new calendar event.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (*gcal.Event, error) {
	start := time.Now()

	event := &gcal.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
	}
	setEventTimes(event, input)

	if len(input.Attendees) > 0 {
		var attendees []*gcal.EventAttendee
		for _, email := range input.Attendees {
			attendees = append(attendees, &gcal.EventAttendee{Email: email})
		}
		event.Attendees = attendees
	}

	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		err = classify("events.insert", err)
		c.record(ctx, "events.insert", start, err)
		return nil, err
	}

	c.record(ctx, "events.insert", start, nil)
	return created, nil
}

// UpdateEvent updates an existing calendar event. Zero-valued input fields
// leave the corresponding event fields unchanged.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, input EventInput) (*gcal.Event, error) {
	start := time.Now()

	existing, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		err = classify("events.get", err)
		c.record(ctx, "events.update", start, err)
		return nil, err
	}

	if input.Summary != "" {
		existing.Summary = input.Summary
	}
	if input.Description != "" {
		existing.Description = input.Description
	}
	if input.Location != "" {
		existing.Location = input.Location
	}
	if !input.Start.IsZero() || !input.End.IsZero() {
		setEventTimes(existing, input)
	}
	if len(input.Attendees) > 0 {
		var attendees []*gcal.EventAttendee
		for _, email := range input.Attendees {
			attendees = append(attendees, &gcal.EventAttendee{Email: email})
		}
		existing.Attendees = attendees
	}

	updated, err := c.svc.Events.Update(calendarID, eventID, existing).Context(ctx).Do()
	if err != nil {
		err = classify("events.update", err)
		c.record(ctx, "events.update", start, err)
		return nil, err
	}

	c.record(ctx, "events.update", start, nil)
	return updated, nil
}

// DeleteEvent deletes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	start := time.Now()

	err := c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		err = classify("events.delete", err)
		c.record(ctx, "events.delete", start, err)
		return err
	}

	c.record(ctx, "events.delete", start, nil)
	return nil
}

// FreeBusy queries busy intervals for the given calendars in one batched
// provider call.
func (c *Client) FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (map[string][]BusyInterval, error) {
	start := time.Now()

	items := make([]*gcal.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &gcal.FreeBusyRequestItem{Id: id}
	}

	query := &gcal.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		err = classify("freebusy.query", err)
		c.record(ctx, "freebusy.query", start, err)
		return nil, err
	}

	busy := make(map[string][]BusyInterval, len(result.Calendars))
	for calID, cal := range result.Calendars {
		intervals := make([]BusyInterval, 0, len(cal.Busy))
		for _, b := range cal.Busy {
			bStart, perr := time.Parse(time.RFC3339, b.Start)
			if perr == nil {
				var bEnd time.Time
				bEnd, perr = time.Parse(time.RFC3339, b.End)
				if perr == nil {
					intervals = append(intervals, BusyInterval{Start: bStart, End: bEnd})
					continue
				}
			}
			// A busy block we cannot parse means availability computed
			// from this response would be wrong, not just incomplete.
			err = &APIError{Op: "freebusy.query", Err: fmt.Errorf("calendar %s: malformed busy interval: %w", calID, perr)}
			c.record(ctx, "freebusy.query", start, err)
			return nil, err
		}
		busy[calID] = intervals
	}

	c.record(ctx, "freebusy.query", start, nil)
	return busy, nil
}

func (c *Client) record(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordProviderOperation(ctx, op, status, time.Since(start))
}

// setEventTimes fills in start/end on a provider event from input. All-day
// events use Date, timed events use DateTime with the input timezone.
func setEventTimes(event *gcal.Event, input EventInput) {
	if input.AllDay {
		event.Start = &gcal.EventDateTime{
			Date: input.Start.Format("2006-01-02"),
		}
		event.End = &gcal.EventDateTime{
			Date: input.End.Format("2006-01-02"),
		}
		return
	}

	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	event.Start = &gcal.EventDateTime{
		DateTime: input.Start.Format(time.RFC3339),
		TimeZone: tz,
	}
	event.End = &gcal.EventDateTime{
		DateTime: input.End.Format(time.RFC3339),
		TimeZone: tz,
	}
}
