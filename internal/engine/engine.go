package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/google"
	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/logging"
	"github.com/whenfree/whenfree/internal/store"
)

// defaultFanOut caps concurrent provider calls per request. Small on purpose,
// to stay inside Google Calendar API rate limits.
const defaultFanOut = 4

// Store is the account/calendar repository the engine reads from.
type Store interface {
	GetAccounts(userID string) ([]store.Account, error)
	GetCalendars(userID string, includeHidden bool) ([]store.Calendar, error)
}

// TokenSource keeps account access tokens valid.
type TokenSource interface {
	EnsureValid(ctx context.Context, account *store.Account) (string, error)
	Refresh(ctx context.Context, account *store.Account) (string, error)
}

// Gateway is the provider surface the engine orchestrates. One Gateway is
// bound to one access token.
type Gateway interface {
	ListCalendars(ctx context.Context) ([]store.Calendar, error)
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*gcal.Event, error)
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*gcal.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, input calendar.EventInput) (*gcal.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
	FreeBusy(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (map[string][]calendar.BusyInterval, error)
}

// GatewayFactory builds a Gateway for an access token. Injected so tests can
// substitute fakes and so client construction happens exactly once per
// (request, account).
type GatewayFactory func(ctx context.Context, accessToken string) (Gateway, error)

// Schedule is the result of a windowed aggregation: the merged event list
// plus the resolved window echoed back to the caller.
type Schedule struct {
	Window Window
	Events []calendar.Event
}

// FreeSlot is a time range of at least the requested duration with no busy
// interval overlap.
type FreeSlot struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Engine aggregates events and availability across every linked account.
// Construct once at process start and share; all state is per-request.
type Engine struct {
	store      Store
	tokens     TokenSource
	newGateway GatewayFactory
	loc        *time.Location
	fanOut     int
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Options tune an Engine beyond its required dependencies.
type Options struct {
	// DefaultLocation resolves events that do not declare their own
	// timezone and requests that do not carry one. Defaults to UTC.
	DefaultLocation *time.Location

	// FanOut caps concurrent provider calls per request.
	FanOut int

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// New creates an Engine.
func New(st Store, tokens TokenSource, factory GatewayFactory, opts Options) *Engine {
	loc := opts.DefaultLocation
	if loc == nil {
		loc = time.UTC
	}
	fanOut := opts.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	return &Engine{
		store:      st,
		tokens:     tokens,
		newGateway: factory,
		loc:        loc,
		fanOut:     fanOut,
		logger:     logger,
		metrics:    metrics,
	}
}

// Location returns the engine's default timezone.
func (e *Engine) Location() *time.Location { return e.loc }

// AccountContext pairs a linked account with a token-valid provider gateway.
type AccountContext struct {
	Account *store.Account
	Gateway Gateway
}

// buildContext materializes one live context: valid token first, then the
// gateway bound to it. Returns an AuthError when the account cannot be made
// usable without re-linking.
func (e *Engine) buildContext(ctx context.Context, account *store.Account) (*AccountContext, error) {
	token, err := e.tokens.EnsureValid(ctx, account)
	if err != nil {
		var reauth *google.ReauthRequiredError
		if errors.As(err, &reauth) {
			return nil, &AuthError{AccountID: account.ID, Err: err}
		}
		return nil, &ServiceError{Err: err}
	}

	gw, err := e.newGateway(ctx, token)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}

	return &AccountContext{Account: account, Gateway: gw}, nil
}

// refreshContext forces a token refresh and rebinds the gateway. Used after a
// 401 on a token EnsureValid considered fresh.
func (e *Engine) refreshContext(ctx context.Context, ac *AccountContext) error {
	token, err := e.tokens.Refresh(ctx, ac.Account)
	if err != nil {
		var reauth *google.ReauthRequiredError
		if errors.As(err, &reauth) {
			return &AuthError{AccountID: ac.Account.ID, Err: err}
		}
		return &ServiceError{Err: err}
	}

	gw, err := e.newGateway(ctx, token)
	if err != nil {
		return &ServiceError{Err: err}
	}
	ac.Gateway = gw
	return nil
}

// contexts loads the user's accounts in stable order (linked-at ascending)
// without touching the provider yet. An empty result is a UserError: the
// caller has to link an account first.
func (e *Engine) contexts(userID string) ([]*store.Account, error) {
	accounts, err := e.store.GetAccounts(userID)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	if len(accounts) == 0 {
		return nil, &UserError{Msg: "no linked calendar account, link an account first"}
	}

	ptrs := make([]*store.Account, len(accounts))
	for i := range accounts {
		ptrs[i] = &accounts[i]
	}
	return ptrs, nil
}

func (e *Engine) logSkip(op string, accountID int64, calendarID string, err error) {
	e.logger.Debug("skipping inaccessible calendar source",
		logging.Operation(op),
		logging.Account(accountID),
		logging.Calendar(calendarID),
		logging.Status(logging.StatusSkipped),
		logging.Err(err))
}
