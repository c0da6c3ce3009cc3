package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/logging"
)

const (
	// slotStep is the grid free slots snap to.
	slotStep = 30 * time.Minute

	// maxSlots caps the result so a week-long window does not flood the
	// caller with hundreds of identical half-hour offsets.
	maxSlots = 20
)

// AvailabilityQuery asks for open slots of Duration inside the window.
// Participants are extra attendee calendars (email addresses) consulted via
// free/busy alongside the user's own linked calendars.
type AvailabilityQuery struct {
	Window       Window
	Duration     time.Duration
	Participants []string
}

// FindFreeSlots returns up to maxSlots ranges of exactly query.Duration in
// which every consulted calendar is free. Slots start on slotStep boundaries
// measured from the window start.
func (e *Engine) FindFreeSlots(ctx context.Context, userID string, query AvailabilityQuery) ([]FreeSlot, error) {
	if query.Duration <= 0 {
		return nil, &UserError{Msg: "slot duration must be positive"}
	}

	busy, err := e.collectBusy(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	merged := mergeIntervals(busy)

	return scanFree(query.Window, query.Duration, merged), nil
}

// accountBusy is the per-account free/busy result. A nil ac marks an account
// that was dropped as unreachable.
type accountBusy struct {
	ac   *AccountContext
	busy []calendar.BusyInterval
}

// collectBusy gathers busy intervals for every linked account's readable
// calendars, one batched free/busy call per account, fanned out like the
// schedule aggregation. Requested participant calendars ride along on the
// first account's call.
func (e *Engine) collectBusy(ctx context.Context, userID string, query AvailabilityQuery) ([]calendar.BusyInterval, error) {
	accounts, err := e.contexts(userID)
	if err != nil {
		return nil, err
	}
	stored, err := e.storedCalendarIDs(userID)
	if err != nil {
		return nil, err
	}

	start, end := query.Window.UTCStart(), query.Window.UTCEnd()
	results := make([]accountBusy, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for i, account := range accounts {
		g.Go(func() error {
			ac, err := e.buildContext(gctx, account)
			if err != nil {
				if IsServiceError(err) {
					return err
				}
				e.logSkip("availability.busy", account.ID, "", err)
				return nil
			}

			calIDs := stored[account.ID]
			if len(calIDs) == 0 {
				// No synced calendars for this account yet; ask the
				// provider directly.
				calIDs, err = e.liveCalendarIDs(gctx, ac)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					e.logger.Warn("dropping unreachable account",
						logging.Operation("availability.busy"),
						logging.Account(account.ID),
						logging.Status(logging.StatusSkipped),
						logging.Err(err))
					return nil
				}
			}

			ids := calIDs
			if i == 0 && len(query.Participants) > 0 {
				ids = make([]string, 0, len(calIDs)+len(query.Participants))
				ids = append(ids, calIDs...)
				ids = append(ids, query.Participants...)
			}

			var busy []calendar.BusyInterval
			if len(ids) > 0 {
				intervals, err := e.freeBusyOnce(gctx, ac, ids, start, end)
				if err != nil {
					if isClassified(err) {
						return err
					}
					return &ServiceError{Err: err}
				}
				for _, ranges := range intervals {
					busy = append(busy, ranges...)
				}
			}
			results[i] = accountBusy{ac: ac, busy: busy}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if isClassified(err) {
			return nil, err
		}
		return nil, &ServiceError{Err: err}
	}

	var busy []calendar.BusyInterval
	reachable := 0
	for _, res := range results {
		if res.ac == nil {
			continue
		}
		reachable++
		busy = append(busy, res.busy...)
	}
	if reachable == 0 {
		return nil, &ServiceError{Err: errors.New("no linked account is reachable")}
	}

	// Participants ride on the first account's batch; when that account was
	// dropped, ask for them through any reachable one so attendee busy time
	// is never silently missing.
	if len(query.Participants) > 0 && results[0].ac == nil {
		for _, res := range results {
			if res.ac == nil {
				continue
			}
			intervals, err := e.freeBusyOnce(ctx, res.ac, query.Participants, start, end)
			if err != nil {
				if isClassified(err) {
					return nil, err
				}
				return nil, &ServiceError{Err: err}
			}
			for _, ranges := range intervals {
				busy = append(busy, ranges...)
			}
			break
		}
	}

	return busy, nil
}

// freeBusyOnce queries free/busy, absorbing one stale-token 401 with a forced
// refresh and a single retry.
func (e *Engine) freeBusyOnce(ctx context.Context, ac *AccountContext, ids []string, start, end time.Time) (map[string][]calendar.BusyInterval, error) {
	intervals, err := ac.Gateway.FreeBusy(ctx, ids, start, end)
	if !errors.Is(err, calendar.ErrUnauthorized) {
		return intervals, err
	}
	if rerr := e.refreshContext(ctx, ac); rerr != nil {
		return nil, rerr
	}
	return ac.Gateway.FreeBusy(ctx, ids, start, end)
}

// storedCalendarIDs groups the synced, visible, readable calendars by
// account so availability checks avoid a calendar-list round trip.
func (e *Engine) storedCalendarIDs(userID string) (map[int64][]string, error) {
	cals, err := e.store.GetCalendars(userID, false)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	byAccount := make(map[int64][]string)
	for _, cal := range cals {
		if cal.CanQueryFreeBusy() {
			byAccount[cal.AccountID] = append(byAccount[cal.AccountID], cal.ProviderCalendarID)
		}
	}
	return byAccount, nil
}

// liveCalendarIDs lists the account's calendars from the provider, absorbing
// one stale-token 401.
func (e *Engine) liveCalendarIDs(ctx context.Context, ac *AccountContext) ([]string, error) {
	cals, err := ac.Gateway.ListCalendars(ctx)
	if errors.Is(err, calendar.ErrUnauthorized) {
		if rerr := e.refreshContext(ctx, ac); rerr == nil {
			cals, err = ac.Gateway.ListCalendars(ctx)
		}
	}
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cals))
	for _, cal := range cals {
		if cal.CanQueryFreeBusy() && !cal.Hidden {
			ids = append(ids, cal.ProviderCalendarID)
		}
	}
	return ids, nil
}

// mergeIntervals sorts intervals by start and coalesces every overlapping or
// touching pair into one.
func mergeIntervals(intervals []calendar.BusyInterval) []calendar.BusyInterval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]calendar.BusyInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	merged := sorted[:1]
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// scanFree walks the window on the slot grid and emits every position where
// a slot of the exact duration fits without touching a busy interval.
// Intervals must already be merged and sorted.
func scanFree(window Window, duration time.Duration, busy []calendar.BusyInterval) []FreeSlot {
	windowStart, windowEnd := window.UTCStart(), window.UTCEnd()
	slots := make([]FreeSlot, 0, maxSlots)

	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(slotStep) {
		end := start.Add(duration)
		if overlapsAny(busy, start, end) {
			continue
		}
		slots = append(slots, FreeSlot{
			Start:    start.In(window.Location),
			End:      end.In(window.Location),
			Duration: duration,
		})
		if len(slots) == maxSlots {
			break
		}
	}
	return slots
}

func overlapsAny(busy []calendar.BusyInterval, start, end time.Time) bool {
	// The merged list is sorted, so the first interval ending after the
	// slot start is the only candidate.
	i := sort.Search(len(busy), func(i int) bool {
		return busy[i].End.After(start)
	})
	return i < len(busy) && busy[i].Overlaps(start, end)
}
