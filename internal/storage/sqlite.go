package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the SQLite-backed repository for calendar accounts and the
// local event cache. Timestamps are stored as unix seconds so range
// queries stay comparable regardless of timezone.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS calendar_accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			email TEXT NOT NULL,
			server_url TEXT DEFAULT '',
			username TEXT DEFAULT '',
			password TEXT DEFAULT '',
			is_active INTEGER DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS calendar_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL,
			external_event_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			location TEXT DEFAULT '',
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			all_day INTEGER DEFAULT 0,
			participants TEXT DEFAULT '[]',
			meeting_url TEXT DEFAULT '',
			synced_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (account_id) REFERENCES calendar_accounts(id),
			UNIQUE (account_id, external_event_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_provider_username ON calendar_accounts(provider, username)`,
		`CREATE INDEX IF NOT EXISTS idx_events_account_id ON calendar_events(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_time ON calendar_events(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_events_external_id ON calendar_events(external_event_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// CreateAccount inserts a calendar account and sets its ID.
func (s *Storage) CreateAccount(a *domain.CalendarAccount) error {
	now := time.Now()
	res, err := s.db.Exec(
		`INSERT INTO calendar_accounts (provider, email, server_url, username, password, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Provider, a.Email, a.ServerURL, a.Username, a.Password, boolToInt(a.IsActive), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// UpsertAccount inserts the account or, when one already exists for the
// same provider and username, refreshes its credentials and activation
// flag. Sets the ID either way.
func (s *Storage) UpsertAccount(a *domain.CalendarAccount) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO calendar_accounts (provider, email, server_url, username, password, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, username) DO UPDATE SET
			email = excluded.email,
			server_url = excluded.server_url,
			password = excluded.password,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		a.Provider, a.Email, a.ServerURL, a.Username, a.Password, boolToInt(a.IsActive), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT id FROM calendar_accounts WHERE provider = ? AND username = ?`,
		a.Provider, a.Username)
	if err := row.Scan(&a.ID); err != nil {
		return fmt.Errorf("upsert account id: %w", err)
	}
	a.UpdatedAt = now
	return nil
}

// GetAccount returns the account with id, or nil if it does not exist.
func (s *Storage) GetAccount(id int64) (*domain.CalendarAccount, error) {
	row := s.db.QueryRow(
		`SELECT id, provider, email, server_url, username, password, is_active, created_at, updated_at
		 FROM calendar_accounts WHERE id = ?`, id)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetActiveAccounts returns all accounts with is_active set.
func (s *Storage) GetActiveAccounts() ([]*domain.CalendarAccount, error) {
	rows, err := s.db.Query(
		`SELECT id, provider, email, server_url, username, password, is_active, created_at, updated_at
		 FROM calendar_accounts WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.CalendarAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SaveEvents upserts fetched events for an account, keyed by the
// provider-assigned external id. Returns the number of events written.
func (s *Storage) SaveEvents(accountID int64, events []domain.CalendarEvent) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO calendar_events
			(account_id, external_event_id, title, description, location, start_time, end_time, all_day, participants, meeting_url, synced_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, external_event_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			all_day = excluded.all_day,
			participants = excluded.participants,
			meeting_url = excluded.meeting_url,
			synced_at = excluded.synced_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	saved := 0
	for _, e := range events {
		participants, err := json.Marshal(e.Participants)
		if err != nil {
			return saved, fmt.Errorf("marshal participants: %w", err)
		}

		_, err = stmt.Exec(
			accountID, e.ExternalEventID, e.Title, e.Description, e.Location,
			e.StartTime.Unix(), e.EndTime.Unix(), boolToInt(e.AllDay),
			string(participants), e.MeetingURL, now, now, now,
		)
		if err != nil {
			return saved, fmt.Errorf("upsert event %s: %w", e.ExternalEventID, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// GetEventsInDetectionWindow returns events starting within +-minutes
// of now, ordered by start time.
func (s *Storage) GetEventsInDetectionWindow(minutes int) ([]*domain.CalendarEvent, error) {
	now := time.Now()
	from := now.Add(-time.Duration(minutes) * time.Minute).Unix()
	to := now.Add(time.Duration(minutes) * time.Minute).Unix()

	return s.queryEvents(
		`SELECT id, account_id, external_event_id, title, description, location, start_time, end_time, all_day, participants, meeting_url, synced_at, created_at, updated_at
		 FROM calendar_events
		 WHERE start_time >= ? AND start_time <= ?
		 ORDER BY start_time`, from, to)
}

// FindConflictingMeetings returns events overlapping [start, end).
func (s *Storage) FindConflictingMeetings(start, end time.Time) ([]*domain.CalendarEvent, error) {
	return s.queryEvents(
		`SELECT id, account_id, external_event_id, title, description, location, start_time, end_time, all_day, participants, meeting_url, synced_at, created_at, updated_at
		 FROM calendar_events
		 WHERE start_time < ? AND end_time > ?
		 ORDER BY start_time`, end.Unix(), start.Unix())
}

// CleanupOldEvents deletes events that ended more than days ago and
// returns the number removed.
func (s *Storage) CleanupOldEvents(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	res, err := s.db.Exec(`DELETE FROM calendar_events WHERE end_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old events: %w", err)
	}
	return res.RowsAffected()
}

func (s *Storage) queryEvents(query string, args ...any) ([]*domain.CalendarEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.CalendarAccount, error) {
	var a domain.CalendarAccount
	var isActive int
	var createdAt, updatedAt int64

	err := row.Scan(&a.ID, &a.Provider, &a.Email, &a.ServerURL, &a.Username, &a.Password, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.IsActive = isActive != 0
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

func scanEvent(row rowScanner) (*domain.CalendarEvent, error) {
	var e domain.CalendarEvent
	var allDay int
	var participants string
	var startTime, endTime, createdAt, updatedAt int64
	var syncedAt sql.NullInt64

	err := row.Scan(&e.ID, &e.AccountID, &e.ExternalEventID, &e.Title, &e.Description, &e.Location,
		&startTime, &endTime, &allDay, &participants, &e.MeetingURL, &syncedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.AllDay = allDay != 0
	e.StartTime = time.Unix(startTime, 0)
	e.EndTime = time.Unix(endTime, 0)
	e.CreatedAt = time.Unix(createdAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	if syncedAt.Valid {
		t := time.Unix(syncedAt.Int64, 0)
		e.SyncedAt = &t
	}
	if participants != "" {
		if err := json.Unmarshal([]byte(participants), &e.Participants); err != nil {
			return nil, fmt.Errorf("unmarshal participants: %w", err)
		}
	}
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
