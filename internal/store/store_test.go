package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "whenfree.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetAccounts(t *testing.T) {
	s := newTestStore(t)

	a := &Account{
		UserID:       "user-1",
		Email:        "a@example.com",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateAccount(a))
	assert.NotZero(t, a.ID)
	assert.False(t, a.LinkedAt.IsZero())

	b := &Account{UserID: "user-1", Email: "b@example.com", AccessToken: "at-2"}
	require.NoError(t, s.CreateAccount(b))

	accounts, err := s.GetAccounts("user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// Oldest link first, ties broken by id.
	assert.Equal(t, "a@example.com", accounts[0].Email)
	assert.Equal(t, "b@example.com", accounts[1].Email)
	assert.Equal(t, "at-1", accounts[0].AccessToken)
	assert.Equal(t, "rt-1", accounts[0].RefreshToken)
	assert.False(t, accounts[0].Expiry.IsZero())

	// Unknown expiry round-trips as zero.
	assert.True(t, accounts[1].Expiry.IsZero())

	other, err := s.GetAccounts("user-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpdateAccountTokens(t *testing.T) {
	s := newTestStore(t)

	a := &Account{UserID: "user-1", AccessToken: "old", RefreshToken: "old-rt"}
	require.NoError(t, s.CreateAccount(a))

	expiry := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, s.UpdateAccountTokens(a.ID, "new", "new-rt", expiry))

	got, err := s.GetAccount(a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "new-rt", got.RefreshToken)
	assert.True(t, got.Expiry.Equal(expiry))
}

func TestGetAccountMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetAccount(12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSyncAndGetCalendars(t *testing.T) {
	s := newTestStore(t)

	a := &Account{UserID: "user-1"}
	require.NoError(t, s.CreateAccount(a))

	calendars := []Calendar{
		{ProviderCalendarID: "primary", Summary: "Work", Primary: true, AccessRole: "owner"},
		{ProviderCalendarID: "team@group.calendar.google.com", Summary: "Team", AccessRole: "reader"},
		{ProviderCalendarID: "hidden@group.calendar.google.com", Summary: "Hidden", AccessRole: "reader", Hidden: true},
	}
	require.NoError(t, s.SyncCalendars(a.ID, calendars))

	visible, err := s.GetCalendars("user-1", false)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "primary", visible[0].ProviderCalendarID)
	assert.True(t, visible[0].Primary)

	all, err := s.GetCalendars("user-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Re-sync replaces the previous set.
	require.NoError(t, s.SyncCalendars(a.ID, calendars[:1]))
	all, err = s.GetCalendars("user-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestStore(t)

	a := &Account{UserID: "user-1"}
	require.NoError(t, s.CreateAccount(a))
	require.NoError(t, s.SyncCalendars(a.ID, []Calendar{
		{ProviderCalendarID: "primary", AccessRole: "owner"},
	}))

	require.NoError(t, s.DeleteAccount(a.ID))

	accounts, err := s.GetAccounts("user-1")
	require.NoError(t, err)
	assert.Empty(t, accounts)

	calendars, err := s.GetCalendars("user-1", true)
	require.NoError(t, err)
	assert.Empty(t, calendars)
}

func TestCalendarAccessRoles(t *testing.T) {
	tests := []struct {
		role     string
		canRead  bool
		canWrite bool
		canFB    bool
	}{
		{"owner", true, true, true},
		{"writer", true, true, true},
		{"reader", true, false, true},
		{"freeBusyReader", false, false, true},
		{"", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			c := Calendar{AccessRole: tt.role}
			assert.Equal(t, tt.canRead, c.CanRead())
			assert.Equal(t, tt.canWrite, c.CanWrite())
			assert.Equal(t, tt.canFB, c.CanQueryFreeBusy())
		})
	}
}
