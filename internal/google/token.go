package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/logging"
	"github.com/whenfree/whenfree/internal/store"
)

// RefreshLeeway is the safety margin before token expiry at which a proactive
// refresh is triggered.
const RefreshLeeway = 5 * time.Minute

// ReauthRequiredError indicates the account's refresh token is missing,
// revoked, or expired. The grant cannot be repaired by retrying; the user has
// to re-link the account.
type ReauthRequiredError struct {
	AccountID int64
	Err       error
}

func (e *ReauthRequiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("account %d requires re-linking: %v", e.AccountID, e.Err)
	}
	return fmt.Sprintf("account %d requires re-linking", e.AccountID)
}

func (e *ReauthRequiredError) Unwrap() error { return e.Err }

// TokenStore persists refreshed credentials.
type TokenStore interface {
	UpdateAccountTokens(accountID int64, accessToken, refreshToken string, expiry time.Time) error
}

// TokenManager keeps access tokens of linked accounts valid.
//
// Refreshes are serialized per account: Google may invalidate the old refresh
// token on use, so two racing refreshes against the same refresh_token could
// strand one caller with a spurious invalid_grant.
type TokenManager struct {
	conf    *oauth2.Config
	store   TokenStore
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	leeway  time.Duration

	group singleflight.Group
}

// NewTokenManager creates a TokenManager that refreshes against conf's token
// endpoint and writes refreshed credentials through st.
func NewTokenManager(conf *oauth2.Config, st TokenStore, metrics *instrumentation.Metrics, logger *slog.Logger) *TokenManager {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		conf:    conf,
		store:   st,
		metrics: metrics,
		logger:  logger,
		leeway:  RefreshLeeway,
	}
}

// EnsureValid returns a currently-valid access token for the account,
// refreshing it first if it is within the expiry leeway. The account's token
// fields are updated in place on refresh.
func (m *TokenManager) EnsureValid(ctx context.Context, account *store.Account) (string, error) {
	if account.AccessToken != "" && !m.needsRefresh(account) {
		return account.AccessToken, nil
	}
	return m.Refresh(ctx, account)
}

// Refresh unconditionally performs the refresh-token grant for the account,
// persists the new credentials, and returns the new access token. Used by
// callers that received a 401 on a token EnsureValid considered fresh.
func (m *TokenManager) Refresh(ctx context.Context, account *store.Account) (string, error) {
	token, err, _ := m.group.Do(strconv.FormatInt(account.ID, 10), func() (any, error) {
		tok, err := m.refresh(ctx, account)
		if err != nil {
			return nil, err
		}
		// Write the account fields inside the flight so exactly one
		// goroutine mutates the shared struct; waiters only consume the
		// returned token value.
		account.AccessToken = tok.AccessToken
		account.RefreshToken = tok.RefreshToken
		account.Expiry = tok.Expiry
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return token.(*oauth2.Token).AccessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context, account *store.Account) (*oauth2.Token, error) {
	if account.RefreshToken == "" {
		m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultRevoked)
		return nil, &ReauthRequiredError{AccountID: account.ID}
	}

	ts := m.conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: account.RefreshToken,
	})

	tok, err := ts.Token()
	if err != nil {
		if isInvalidGrant(err) {
			m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultRevoked)
			m.logger.Warn("refresh token revoked",
				logging.Account(account.ID),
				logging.Err(err))
			return nil, &ReauthRequiredError{AccountID: account.ID, Err: err}
		}
		m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		return nil, fmt.Errorf("refresh token for account %d: %w", account.ID, err)
	}

	// Google rotates refresh tokens only sometimes; keep the old one when the
	// response omits it.
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = account.RefreshToken
		tok.RefreshToken = refreshToken
	}

	// Persist before returning so concurrent requests observe the new token.
	if err := m.store.UpdateAccountTokens(account.ID, tok.AccessToken, refreshToken, tok.Expiry); err != nil {
		m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultFailure)
		return nil, fmt.Errorf("persist refreshed token for account %d: %w", account.ID, err)
	}

	m.metrics.RecordTokenRefresh(ctx, instrumentation.RefreshResultSuccess)
	m.logger.Debug("access token refreshed",
		logging.Account(account.ID),
		slog.String("token", logging.SanitizeToken(tok.AccessToken)),
		slog.Time("expiry", tok.Expiry))

	return tok, nil
}

func (m *TokenManager) needsRefresh(account *store.Account) bool {
	if account.Expiry.IsZero() {
		// Unknown expiry: use the stored token as-is and let a 401 trigger
		// the forced refresh path.
		return false
	}
	return time.Now().Add(m.leeway).After(account.Expiry)
}

// isInvalidGrant reports whether the token endpoint rejected the refresh
// token itself (revoked or expired grant).
func isInvalidGrant(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return true
		}
		return strings.Contains(string(retrieveErr.Body), "invalid_grant")
	}
	return false
}
