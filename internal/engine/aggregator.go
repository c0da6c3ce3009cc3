package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/logging"
	"github.com/whenfree/whenfree/internal/store"
)

// accountSources is the discovery result for one account: its live context
// plus the readable calendars to fetch from.
type accountSources struct {
	ac        *AccountContext
	calendars []store.Calendar
}

// fetchResult tags one (account, calendar) fetch. Exactly one of events,
// skipped or fatal describes the outcome.
type fetchResult struct {
	account  *store.Account
	calendar store.Calendar
	events   []*gcal.Event
	skipped  bool
	fatal    error
}

// GetSchedule aggregates events across every linked account of userID inside
// the window. Accounts that cannot be reached are dropped with a log entry;
// only when no account is reachable does the whole request fail.
func (e *Engine) GetSchedule(ctx context.Context, userID string, window Window) (*Schedule, error) {
	started := time.Now()
	schedule, skipped, err := e.getSchedule(ctx, userID, window)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	e.metrics.RecordAggregation(ctx, status, time.Since(started))
	if skipped > 0 {
		e.metrics.RecordCalendarsSkipped(ctx, skipped)
	}
	return schedule, err
}

func (e *Engine) getSchedule(ctx context.Context, userID string, window Window) (*Schedule, int64, error) {
	accounts, err := e.contexts(userID)
	if err != nil {
		return nil, 0, err
	}

	sources, err := e.discover(ctx, accounts)
	if err != nil {
		return nil, 0, err
	}
	if len(sources) == 0 {
		return nil, 0, &ServiceError{Err: errors.New("no linked account is reachable")}
	}

	results, err := e.fetch(ctx, sources, window)
	if err != nil {
		return nil, 0, err
	}

	var skipped int64
	events := make([]calendar.Event, 0, 64)
	for _, res := range results {
		if res.skipped {
			skipped++
			continue
		}
		for _, raw := range res.events {
			ev := calendar.NormalizeEvent(raw, res.calendar, e.loc)
			if ev.Intersects(window.UTCStart(), window.UTCEnd()) {
				events = append(events, ev)
			}
		}
	}
	sortEvents(events)

	return &Schedule{Window: window, Events: events}, skipped, nil
}

// discover builds a live context per account and lists its calendars,
// fanning out across accounts. Unusable accounts are dropped; a context
// cancellation is the only error that aborts discovery.
func (e *Engine) discover(ctx context.Context, accounts []*store.Account) ([]*accountSources, error) {
	var mu sync.Mutex
	sources := make([]*accountSources, 0, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for _, account := range accounts {
		g.Go(func() error {
			src, err := e.discoverAccount(gctx, account)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("dropping unreachable account",
					logging.Operation("schedule.discover"),
					logging.Account(account.ID),
					logging.Status(logging.StatusSkipped),
					logging.Err(err))
				return nil
			}
			mu.Lock()
			sources = append(sources, src)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &ServiceError{Err: err}
	}

	// Fan-out scrambles completion order; restore linked-at ordering so
	// downstream behavior is deterministic.
	sort.Slice(sources, func(i, j int) bool {
		return accountLess(sources[i].ac.Account, sources[j].ac.Account)
	})
	return sources, nil
}

func (e *Engine) discoverAccount(ctx context.Context, account *store.Account) (*accountSources, error) {
	ac, err := e.buildContext(ctx, account)
	if err != nil {
		return nil, err
	}

	cals, err := ac.Gateway.ListCalendars(ctx)
	if errors.Is(err, calendar.ErrUnauthorized) {
		// The stored token looked fresh but the provider disagrees.
		// One forced refresh, one retry, then give up on the account.
		if rerr := e.refreshContext(ctx, ac); rerr != nil {
			return nil, rerr
		}
		cals, err = ac.Gateway.ListCalendars(ctx)
	}
	if err != nil {
		return nil, err
	}

	readable := make([]store.Calendar, 0, len(cals))
	for _, cal := range cals {
		if !cal.CanRead() || cal.Hidden {
			continue
		}
		// Provider calendar list entries do not know which local account
		// they were fetched through.
		cal.AccountID = account.ID
		readable = append(readable, cal)
	}
	return &accountSources{ac: ac, calendars: readable}, nil
}

// fetch lists events for every (account, calendar) pair concurrently. A 403
// or 404 on a single calendar skips that calendar; any other provider error
// aborts the aggregation.
func (e *Engine) fetch(ctx context.Context, sources []*accountSources, window Window) ([]fetchResult, error) {
	var mu sync.Mutex
	results := make([]fetchResult, 0, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for _, src := range sources {
		for _, cal := range src.calendars {
			g.Go(func() error {
				res := e.fetchCalendar(gctx, src.ac, cal, window)
				if res.fatal != nil {
					return res.fatal
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		if isClassified(err) {
			return nil, err
		}
		return nil, &ServiceError{Err: err}
	}
	return results, nil
}

func (e *Engine) fetchCalendar(ctx context.Context, ac *AccountContext, cal store.Calendar, window Window) fetchResult {
	res := fetchResult{account: ac.Account, calendar: cal}

	events, err := ac.Gateway.ListEvents(ctx, cal.ProviderCalendarID, window.UTCStart(), window.UTCEnd())
	if errors.Is(err, calendar.ErrUnauthorized) {
		// The token passed validation during discovery but the provider
		// rejected it here. One refresh, one retry; a second rejection
		// skips the calendar like a 403.
		events, err = e.refetchEvents(ctx, ac.Account, cal, window)
	}
	switch {
	case err == nil:
		res.events = events
	case errors.Is(err, calendar.ErrForbidden), errors.Is(err, calendar.ErrNotFound),
		errors.Is(err, calendar.ErrUnauthorized):
		// Calendar list entries can outlive the underlying calendar or
		// its sharing grant. Skip the source, keep the aggregation.
		e.logSkip("schedule.fetch", ac.Account.ID, cal.ProviderCalendarID, err)
		res.skipped = true
	default:
		res.fatal = &ServiceError{Err: err}
	}
	return res
}

// refetchEvents retries one event listing after a forced token refresh. The
// gateway is rebuilt locally so concurrent fetches for the same account never
// observe a half-swapped client.
func (e *Engine) refetchEvents(ctx context.Context, account *store.Account, cal store.Calendar, window Window) ([]*gcal.Event, error) {
	token, err := e.tokens.Refresh(ctx, account)
	if err != nil {
		return nil, calendar.ErrUnauthorized
	}
	gw, err := e.newGateway(ctx, token)
	if err != nil {
		return nil, err
	}
	return gw.ListEvents(ctx, cal.ProviderCalendarID, window.UTCStart(), window.UTCEnd())
}

// sortEvents orders timed events before all-day events, then by start, then
// by provider event ID so equal timestamps stay deterministic.
func sortEvents(events []calendar.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.AllDay != b.AllDay {
			return !a.AllDay
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ProviderEventID < b.ProviderEventID
	})
}

func accountLess(a, b *store.Account) bool {
	if !a.LinkedAt.Equal(b.LinkedAt) {
		return a.LinkedAt.Before(b.LinkedAt)
	}
	return a.ID < b.ID
}

// isClassified reports whether err already carries one of the engine's
// user-facing error types.
func isClassified(err error) bool {
	return IsUserError(err) || IsAuthError(err) || IsNotFound(err) || IsServiceError(err)
}
