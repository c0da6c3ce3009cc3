package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists linked accounts and their synced calendar metadata.
type Store struct {
	db *sql.DB
}

// New opens (and if necessary creates) the SQLite database at dbPath and
// applies migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expiry DATETIME,
			linked_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)`,
		`CREATE TABLE IF NOT EXISTS calendars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL,
			provider_calendar_id TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			is_primary INTEGER DEFAULT 0,
			access_role TEXT NOT NULL DEFAULT 'reader',
			is_hidden INTEGER DEFAULT 0,
			FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE,
			UNIQUE (account_id, provider_calendar_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calendars_account_id ON calendars(account_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// CreateAccount inserts a newly linked account and fills in its ID and LinkedAt.
func (s *Store) CreateAccount(a *Account) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO accounts (user_id, email, access_token, refresh_token, expiry, linked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Email, a.AccessToken, a.RefreshToken, nullableTime(a.Expiry), now,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	id, _ := res.LastInsertId()
	a.ID = id
	a.LinkedAt = now
	return nil
}

// GetAccounts returns every account linked by the user, oldest link first.
// The order is stable so callers probing accounts see a deterministic sequence.
func (s *Store) GetAccounts(userID string) ([]Account, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, email, access_token, refresh_token, expiry, linked_at
		 FROM accounts WHERE user_id = ? ORDER BY linked_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccount returns one account by ID, or nil if it does not exist.
func (s *Store) GetAccount(id int64) (*Account, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, email, access_token, refresh_token, expiry, linked_at
		 FROM accounts WHERE id = ?`,
		id,
	)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccountTokens writes refreshed credentials through to storage so that
// concurrent readers observe the new token.
func (s *Store) UpdateAccountTokens(accountID int64, accessToken, refreshToken string, expiry time.Time) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET access_token = ?, refresh_token = ?, expiry = ? WHERE id = ?`,
		accessToken, refreshToken, nullableTime(expiry), accountID,
	)
	if err != nil {
		return fmt.Errorf("update account tokens: %w", err)
	}
	return nil
}

// DeleteAccount unlinks an account. Its calendars are removed by the
// foreign-key cascade.
func (s *Store) DeleteAccount(accountID int64) error {
	if _, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// SyncCalendars replaces the stored calendar set for an account with the
// freshly discovered one.
func (s *Store) SyncCalendars(accountID int64, calendars []Calendar) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM calendars WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear calendars: %w", err)
	}

	for _, c := range calendars {
		_, err := tx.Exec(
			`INSERT INTO calendars (account_id, provider_calendar_id, summary, color, is_primary, access_role, is_hidden)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			accountID, c.ProviderCalendarID, c.Summary, c.Color, c.Primary, c.AccessRole, c.Hidden,
		)
		if err != nil {
			return fmt.Errorf("insert calendar %s: %w", c.ProviderCalendarID, err)
		}
	}

	return tx.Commit()
}

// GetCalendars returns the synced calendars of every account linked by the
// user. Hidden calendars are excluded unless includeHidden is set.
func (s *Store) GetCalendars(userID string, includeHidden bool) ([]Calendar, error) {
	q := `SELECT c.id, c.account_id, c.provider_calendar_id, c.summary, c.color, c.is_primary, c.access_role, c.is_hidden
	      FROM calendars c JOIN accounts a ON a.id = c.account_id
	      WHERE a.user_id = ?`
	if !includeHidden {
		q += ` AND c.is_hidden = 0`
	}
	q += ` ORDER BY c.account_id ASC, c.is_primary DESC, c.provider_calendar_id ASC`

	rows, err := s.db.Query(q, userID)
	if err != nil {
		return nil, fmt.Errorf("query calendars: %w", err)
	}
	defer rows.Close()

	var calendars []Calendar
	for rows.Next() {
		var c Calendar
		if err := rows.Scan(&c.ID, &c.AccountID, &c.ProviderCalendarID, &c.Summary, &c.Color, &c.Primary, &c.AccessRole, &c.Hidden); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		calendars = append(calendars, c)
	}
	return calendars, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	var expiry sql.NullTime
	if err := row.Scan(&a.ID, &a.UserID, &a.Email, &a.AccessToken, &a.RefreshToken, &expiry, &a.LinkedAt); err != nil {
		if err == sql.ErrNoRows {
			return a, err
		}
		return a, fmt.Errorf("scan account: %w", err)
	}
	if expiry.Valid {
		a.Expiry = expiry.Time
	}
	return a, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
