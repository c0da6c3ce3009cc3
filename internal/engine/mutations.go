package engine

import (
	"context"
	"errors"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/store"
)

// CreateEvent inserts a new event into calendarID. Accounts are probed in
// linked-at order until one holds the calendar with write access.
func (e *Engine) CreateEvent(ctx context.Context, userID, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

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
			e.logSkip("event.create", account.ID, calendarID, err)
			continue
		}

		raw, err := ac.Gateway.CreateEvent(ctx, calendarID, input)
		switch {
		case err == nil:
			ev := calendar.NormalizeEvent(raw, boundCalendar(ac, calendarID), e.loc)
			return &ev, nil
		case errors.Is(err, calendar.ErrForbidden), errors.Is(err, calendar.ErrNotFound):
			continue
		case errors.Is(err, calendar.ErrUnauthorized):
			e.logSkip("event.create", account.ID, calendarID, err)
			continue
		default:
			return nil, &ServiceError{Err: err}
		}
	}

	return nil, &NotFoundError{CalendarID: calendarID}
}

// UpdateEvent applies the non-zero fields of input to an existing event.
func (e *Engine) UpdateEvent(ctx context.Context, userID, calendarID, eventID string, input calendar.EventInput) (*calendar.Event, error) {
	located, err := e.LocateEvent(ctx, userID, calendarID, eventID)
	if err != nil {
		return nil, err
	}

	raw, err := located.Context.Gateway.UpdateEvent(ctx, calendarID, eventID, input)
	if err != nil {
		return nil, mutationError(err, calendarID, eventID)
	}
	ev := calendar.NormalizeEvent(raw, calendarFor(located, calendarID), e.loc)
	return &ev, nil
}

// DeleteEvent removes an event from calendarID.
func (e *Engine) DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error {
	located, err := e.LocateEvent(ctx, userID, calendarID, eventID)
	if err != nil {
		return err
	}

	if err := located.Context.Gateway.DeleteEvent(ctx, calendarID, eventID); err != nil {
		return mutationError(err, calendarID, eventID)
	}
	return nil
}

// mutationError maps a provider error from a write that followed a
// successful locate. The event existed moments ago, so a 404 here means it
// vanished in between.
func mutationError(err error, calendarID, eventID string) error {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		return &NotFoundError{CalendarID: calendarID, EventID: eventID}
	case errors.Is(err, calendar.ErrForbidden):
		return &UserError{Msg: "no write access to this calendar"}
	default:
		return &ServiceError{Err: err}
	}
}

func validateInput(input calendar.EventInput) error {
	if input.Summary == "" {
		return &UserError{Msg: "event summary is required"}
	}
	if input.Start.IsZero() || input.End.IsZero() {
		return &UserError{Msg: "event start and end times are required"}
	}
	if !input.End.After(input.Start) {
		return &UserError{Msg: "event end must be after its start"}
	}
	return nil
}

// calendarFor synthesizes the calendar record normalization needs when an
// event was resolved by probing rather than via the stored calendar list.
func calendarFor(located *Located, calendarID string) store.Calendar {
	return boundCalendar(located.Context, calendarID)
}

func boundCalendar(ac *AccountContext, calendarID string) store.Calendar {
	return store.Calendar{
		AccountID:          ac.Account.ID,
		ProviderCalendarID: calendarID,
	}
}
