package engine

import (
	"context"
	"errors"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/whenfree/whenfree/internal/calendar"
)

// Located is a resolved event: the raw provider event plus the account
// context it was found under, so follow-up writes reuse the same credentials.
type Located struct {
	Event   *gcal.Event
	Context *AccountContext
}

// LocateEvent finds (calendarID, eventID) by probing the user's accounts in
// linked-at order. The same calendar can be shared into several accounts;
// the first account that can read the event wins. Exhausting all accounts
// is a NotFoundError.
func (e *Engine) LocateEvent(ctx context.Context, userID, calendarID, eventID string) (*Located, error) {
	accounts, err := e.contexts(userID)
	if err != nil {
		return nil, err
	}

	for _, account := range accounts {
		ac, err := e.buildContext(ctx, account)
		if err != nil {
			if IsServiceError(err) {
				return nil, err
			}
			// Accounts needing a re-link cannot host the event for
			// this request; keep probing the rest.
			e.logSkip("event.locate", account.ID, calendarID, err)
			continue
		}

		event, err := e.getEventOnce(ctx, ac, calendarID, eventID)
		switch {
		case err == nil:
			return &Located{Event: event, Context: ac}, nil
		case errors.Is(err, calendar.ErrForbidden), errors.Is(err, calendar.ErrNotFound):
			continue
		case errors.Is(err, calendar.ErrUnauthorized):
			e.logSkip("event.locate", account.ID, calendarID, err)
			continue
		default:
			return nil, &ServiceError{Err: err}
		}
	}

	return nil, &NotFoundError{CalendarID: calendarID, EventID: eventID}
}

// getEventOnce fetches the event, absorbing at most one stale-token 401 with
// a forced refresh and a single retry.
func (e *Engine) getEventOnce(ctx context.Context, ac *AccountContext, calendarID, eventID string) (*gcal.Event, error) {
	event, err := ac.Gateway.GetEvent(ctx, calendarID, eventID)
	if !errors.Is(err, calendar.ErrUnauthorized) {
		return event, err
	}
	if rerr := e.refreshContext(ctx, ac); rerr != nil {
		return nil, calendar.ErrUnauthorized
	}
	return ac.Gateway.GetEvent(ctx, calendarID, eventID)
}

// GetEvent resolves an event and returns it in canonical form.
func (e *Engine) GetEvent(ctx context.Context, userID, calendarID, eventID string) (*calendar.Event, error) {
	located, err := e.LocateEvent(ctx, userID, calendarID, eventID)
	if err != nil {
		return nil, err
	}
	ev := calendar.NormalizeEvent(located.Event, calendarFor(located, calendarID), e.loc)
	return &ev, nil
}
