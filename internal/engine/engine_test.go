package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/google"
	"github.com/whenfree/whenfree/internal/store"
)

type fakeStore struct {
	accounts  []store.Account
	calendars []store.Calendar
	err       error
}

func (s *fakeStore) GetAccounts(userID string) ([]store.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]store.Account, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

func (s *fakeStore) GetCalendars(userID string, includeHidden bool) ([]store.Calendar, error) {
	if includeHidden {
		return s.calendars, nil
	}
	var visible []store.Calendar
	for _, cal := range s.calendars {
		if !cal.Hidden {
			visible = append(visible, cal)
		}
	}
	return visible, nil
}

type fakeTokens struct {
	// ensureErr fails EnsureValid for the named account ids.
	ensureErr map[int64]error
	// refreshErr fails Refresh for the named account ids.
	refreshErr map[int64]error
	refreshes  atomic.Int64
}

func (t *fakeTokens) EnsureValid(ctx context.Context, account *store.Account) (string, error) {
	if err := t.ensureErr[account.ID]; err != nil {
		return "", err
	}
	return account.AccessToken, nil
}

func (t *fakeTokens) Refresh(ctx context.Context, account *store.Account) (string, error) {
	t.refreshes.Add(1)
	if err := t.refreshErr[account.ID]; err != nil {
		return "", err
	}
	account.AccessToken = account.AccessToken + "-refreshed"
	return account.AccessToken, nil
}

// fakeGateway serves canned responses per provider calendar id.
type fakeGateway struct {
	calendars    []store.Calendar
	calendarsErr error
	events       map[string][]*gcal.Event
	eventsErr    map[string]error
	getErr       map[string]error
	busy         map[string][]calendar.BusyInterval
	busyErr      error

	freeBusyCalls atomic.Int64
	freeBusyIDs   []string
}

func (g *fakeGateway) ListCalendars(ctx context.Context) ([]store.Calendar, error) {
	if g.calendarsErr != nil {
		return nil, g.calendarsErr
	}
	return g.calendars, nil
}

func (g *fakeGateway) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	if err := g.eventsErr[calendarID]; err != nil {
		return nil, err
	}
	return g.events[calendarID], nil
}

func (g *fakeGateway) GetEvent(ctx context.Context, calendarID, eventID string) (*gcal.Event, error) {
	if err := g.getErr[calendarID]; err != nil {
		return nil, err
	}
	for _, ev := range g.events[calendarID] {
		if ev.Id == eventID {
			return ev, nil
		}
	}
	return nil, calendar.ErrNotFound
}

func (g *fakeGateway) CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*gcal.Event, error) {
	if err := g.getErr[calendarID]; err != nil {
		return nil, err
	}
	return &gcal.Event{
		Id:      "created-1",
		Summary: input.Summary,
		Start:   &gcal.EventDateTime{DateTime: input.Start.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: input.End.Format(time.RFC3339)},
	}, nil
}

func (g *fakeGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, input calendar.EventInput) (*gcal.Event, error) {
	ev, err := g.GetEvent(ctx, calendarID, eventID)
	if err != nil {
		return nil, err
	}
	updated := *ev
	if input.Summary != "" {
		updated.Summary = input.Summary
	}
	return &updated, nil
}

func (g *fakeGateway) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	_, err := g.GetEvent(ctx, calendarID, eventID)
	return err
}

func (g *fakeGateway) FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (map[string][]calendar.BusyInterval, error) {
	g.freeBusyCalls.Add(1)
	g.freeBusyIDs = append(g.freeBusyIDs, calendarIDs...)
	if g.busyErr != nil {
		return nil, g.busyErr
	}
	out := make(map[string][]calendar.BusyInterval, len(calendarIDs))
	for _, id := range calendarIDs {
		out[id] = g.busy[id]
	}
	return out, nil
}

// gatewayMap routes factory calls to a fake per access token.
type gatewayMap map[string]*fakeGateway

func (m gatewayMap) factory(ctx context.Context, accessToken string) (Gateway, error) {
	gw, ok := m[accessToken]
	if !ok {
		return nil, fmt.Errorf("no gateway for token %q", accessToken)
	}
	return gw, nil
}

func newTestEngine(t *testing.T, st Store, tokens TokenSource, gateways gatewayMap) *Engine {
	t.Helper()
	return New(st, tokens, gateways.factory, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func account(id int64, token string, linked time.Time) store.Account {
	return store.Account{
		ID:          id,
		UserID:      "u1",
		Email:       fmt.Sprintf("a%d@example.com", id),
		AccessToken: token,
		LinkedAt:    linked,
	}
}

func readableCalendar(id string) store.Calendar {
	return store.Calendar{ProviderCalendarID: id, AccessRole: "owner"}
}

func timedEvent(id string, start, end time.Time) *gcal.Event {
	return &gcal.Event{
		Id:      id,
		Summary: "event " + id,
		Status:  "confirmed",
		Start:   &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
}

func allDayEvent(id, date string) *gcal.Event {
	return &gcal.Event{
		Id:      id,
		Summary: "event " + id,
		Status:  "confirmed",
		Start:   &gcal.EventDateTime{Date: date},
		End:     &gcal.EventDateTime{Date: nextDate(date)},
	}
}

func nextDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}

func reauthErr(accountID int64) error {
	return &google.ReauthRequiredError{AccountID: accountID, Err: errors.New("invalid_grant")}
}

func mustWindow(t *testing.T, start, end string, loc *time.Location) Window {
	t.Helper()
	w, err := ParseWindow(start, end, loc)
	if err != nil {
		t.Fatalf("ParseWindow(%s, %s): %v", start, end, err)
	}
	return w
}
