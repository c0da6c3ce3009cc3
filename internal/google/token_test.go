package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/whenfree/whenfree/internal/store"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	updates int
	access  string
	refresh string
	expiry  time.Time
}

func (f *fakeTokenStore) UpdateAccountTokens(accountID int64, accessToken, refreshToken string, expiry time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.access = accessToken
	f.refresh = refreshToken
	f.expiry = expiry
	return nil
}

// newTokenServer returns a fake OAuth token endpoint and a counter of how many
// refresh grants it served.
func newTokenServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestManager(t *testing.T, tokenURL string, st TokenStore) *TokenManager {
	t.Helper()
	conf := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	return NewTokenManager(conf, st, nil, nil)
}

func TestEnsureValidReturnsFreshToken(t *testing.T) {
	srv, hits := newTokenServer(t, `{}`, http.StatusOK)
	st := &fakeTokenStore{}
	m := newTestManager(t, srv.URL, st)

	account := &store.Account{
		ID:          1,
		AccessToken: "fresh",
		Expiry:      time.Now().Add(time.Hour),
	}

	tok, err := m.EnsureValid(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Zero(t, hits.Load(), "a fresh token must not hit the token endpoint")
	assert.Zero(t, st.updates)
}

func TestEnsureValidUnknownExpiryUsesStoredToken(t *testing.T) {
	srv, hits := newTokenServer(t, `{}`, http.StatusOK)
	m := newTestManager(t, srv.URL, &fakeTokenStore{})

	account := &store.Account{ID: 1, AccessToken: "stored"}

	tok, err := m.EnsureValid(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)
	assert.Zero(t, hits.Load())
}

func TestEnsureValidRefreshesExpiredToken(t *testing.T) {
	srv, hits := newTokenServer(t,
		`{"access_token":"new-at","token_type":"Bearer","expires_in":3600,"refresh_token":"new-rt"}`,
		http.StatusOK)
	st := &fakeTokenStore{}
	m := newTestManager(t, srv.URL, st)

	account := &store.Account{
		ID:           7,
		AccessToken:  "old-at",
		RefreshToken: "old-rt",
		Expiry:       time.Now().Add(time.Minute), // inside the 5m leeway
	}

	tok, err := m.EnsureValid(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "new-at", tok)
	assert.EqualValues(t, 1, hits.Load())

	// Account updated in place.
	assert.Equal(t, "new-at", account.AccessToken)
	assert.Equal(t, "new-rt", account.RefreshToken)
	assert.False(t, account.Expiry.IsZero())

	// Persisted before returning.
	assert.Equal(t, 1, st.updates)
	assert.Equal(t, "new-at", st.access)
	assert.Equal(t, "new-rt", st.refresh)
}

func TestRefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	srv, _ := newTokenServer(t,
		`{"access_token":"new-at","token_type":"Bearer","expires_in":3600}`,
		http.StatusOK)
	st := &fakeTokenStore{}
	m := newTestManager(t, srv.URL, st)

	account := &store.Account{ID: 7, RefreshToken: "keep-me"}

	_, err := m.Refresh(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "keep-me", account.RefreshToken)
	assert.Equal(t, "keep-me", st.refresh)
}

func TestRefreshWithoutRefreshTokenRequiresReauth(t *testing.T) {
	srv, hits := newTokenServer(t, `{}`, http.StatusOK)
	m := newTestManager(t, srv.URL, &fakeTokenStore{})

	account := &store.Account{ID: 3}

	_, err := m.Refresh(context.Background(), account)
	var reauth *ReauthRequiredError
	require.ErrorAs(t, err, &reauth)
	assert.EqualValues(t, 3, reauth.AccountID)
	assert.Zero(t, hits.Load())
}

func TestRefreshInvalidGrantRequiresReauth(t *testing.T) {
	srv, _ := newTokenServer(t, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	st := &fakeTokenStore{}
	m := newTestManager(t, srv.URL, st)

	account := &store.Account{ID: 9, RefreshToken: "revoked"}

	_, err := m.Refresh(context.Background(), account)
	var reauth *ReauthRequiredError
	require.ErrorAs(t, err, &reauth)
	assert.EqualValues(t, 9, reauth.AccountID)
	assert.Zero(t, st.updates, "a revoked grant must not be persisted")
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond) // widen the race window
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-at","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	st := &fakeTokenStore{}
	m := newTestManager(t, srv.URL, st)

	account := &store.Account{
		ID:           5,
		AccessToken:  "expired",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(-time.Minute),
	}

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.EnsureValid(context.Background(), account)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-at", tokens[i])
	}
	assert.EqualValues(t, 1, hits.Load(), "concurrent callers must share one refresh")

	// The shared account is mutated by the single in-flight refresh only,
	// so after the barrier its fields are consistent with the response.
	assert.Equal(t, "new-at", account.AccessToken)
	assert.Equal(t, "rt", account.RefreshToken)
	assert.True(t, account.Expiry.After(time.Now()))
}

func TestConcurrentForcedRefreshSharesOneFlight(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"forced-at","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	st := &fakeTokenStore{}
	m := newTestManager(t, srv.URL, st)

	// Two fetch goroutines receiving a 401 at the same time both force a
	// refresh of the same account.
	account := &store.Account{
		ID:           6,
		AccessToken:  "rejected",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour),
	}

	const callers = 4
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Refresh(context.Background(), account)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "forced-at", tokens[i])
	}
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, "forced-at", account.AccessToken)
}

func TestAuthCodeURLRequestsOfflineConsent(t *testing.T) {
	conf := &oauth2.Config{
		ClientID: "cid",
		Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"},
	}

	url := AuthCodeURL(conf)
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "prompt=consent")
}

func TestHTTPClientForcesHTTP1(t *testing.T) {
	client := HTTPClient(context.Background(), "tok")
	require.NotNil(t, client)

	transport, ok := client.Transport.(*oauth2.Transport)
	require.True(t, ok)
	base, ok := transport.Base.(*http.Transport)
	require.True(t, ok)
	assert.False(t, base.ForceAttemptHTTP2)
}
