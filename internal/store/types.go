package store

import "time"

// Account is one linked OAuth-authorized Google Calendar identity.
type Account struct {
	ID           int64
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	// Expiry is the access token expiry. A zero value means the expiry is
	// unknown and the stored access token is used as-is.
	Expiry   time.Time
	LinkedAt time.Time
}

// Calendar is one addressable event collection under an Account.
type Calendar struct {
	ID                 int64
	AccountID          int64
	ProviderCalendarID string
	Summary            string
	Color              string
	Primary            bool
	AccessRole         string // "owner", "writer", "reader", "freeBusyReader"
	Hidden             bool
}

// CanRead reports whether the calendar grants at least read access to events.
func (c Calendar) CanRead() bool {
	switch c.AccessRole {
	case "owner", "writer", "reader":
		return true
	}
	return false
}

// CanWrite reports whether events can be created or modified on the calendar.
func (c Calendar) CanWrite() bool {
	return c.AccessRole == "owner" || c.AccessRole == "writer"
}

// CanQueryFreeBusy reports whether the calendar can be consulted in a
// free/busy lookup. Unlike event reads this includes freeBusyReader grants.
func (c Calendar) CanQueryFreeBusy() bool {
	return c.CanRead() || c.AccessRole == "freeBusyReader"
}
