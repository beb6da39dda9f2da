package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Activity event types.
const (
	EventSignIn        = "sign_in"
	EventSignUp        = "sign_up"
	EventSignOut       = "sign_out"
	EventPasswordReset = "password_reset"
	EventProfileUpdate = "profile_update"
	EventError         = "error"

	sqliteTimeLayout = "2006-01-02 15:04:05"
)

// Event is one row of the activity log.
type Event struct {
	ID        int64
	Timestamp time.Time
	Type      string
	Provider  string
	Email     string
	UID       string
	// Category is the failure category for EventError rows.
	Category string
	Details  map[string]any
	Duration time.Duration
}

// AccountStats aggregates activity per provider and email.
type AccountStats struct {
	Provider            string
	Email               string
	TotalSignIns        int
	TotalErrors         int
	TotalSessionSeconds int
	LastSignIn          time.Time
	LastError           time.Time
}

// EventFilter narrows GetEvents. Zero values match everything.
type EventFilter struct {
	Provider string
	Email    string
	Type     string
	Since    time.Time
	Limit    int
}

// EventLogger records account activity.
type EventLogger interface {
	LogEvent(event Event) error
}

// LogEvent appends an event and updates the account's aggregate stats in the
// same transaction. Events without an email only go to the log.
func (d *DB) LogEvent(event Event) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}

	eventType := strings.TrimSpace(event.Type)
	provider := strings.TrimSpace(event.Provider)
	email := strings.ToLower(strings.TrimSpace(event.Email))

	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	if provider == "" {
		return fmt.Errorf("provider is required")
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	tsStr := formatSQLiteTime(ts)

	var detailsStr sql.NullString
	if event.Details != nil {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		detailsStr = sql.NullString{String: string(b), Valid: true}
	}

	durationSeconds := int64(event.Duration / time.Second)
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO activity_log (timestamp, event_type, provider, email, uid, category, details, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tsStr,
		eventType,
		provider,
		email,
		strings.TrimSpace(event.UID),
		strings.TrimSpace(event.Category),
		detailsStr,
		durationSeconds,
	); err != nil {
		return fmt.Errorf("insert activity_log: %w", err)
	}

	if email != "" {
		if err := updateAccountStats(tx, eventType, provider, email, tsStr, durationSeconds); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// GetEvents returns matching events, newest first.
func (d *DB) GetEvents(filter EventFilter) ([]Event, error) {
	if d == nil || d.conn == nil {
		return nil, fmt.Errorf("db is not open")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, timestamp, event_type, provider, email, uid, category, details, duration_seconds
		 FROM activity_log
		 WHERE datetime(timestamp) >= datetime(?)`
	args := []any{formatSQLiteTime(filter.Since)}

	if p := strings.TrimSpace(filter.Provider); p != "" {
		query += ` AND provider = ?`
		args = append(args, p)
	}
	if e := strings.ToLower(strings.TrimSpace(filter.Email)); e != "" {
		query += ` AND email = ?`
		args = append(args, e)
	}
	if typ := strings.TrimSpace(filter.Type); typ != "" {
		query += ` AND event_type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity_log: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var tsStr string
		var e Event
		var details sql.NullString
		var durationSeconds sql.NullInt64
		if err := rows.Scan(&e.ID, &tsStr, &e.Type, &e.Provider, &e.Email, &e.UID, &e.Category, &details, &durationSeconds); err != nil {
			return nil, fmt.Errorf("scan activity_log: %w", err)
		}

		ts, err := parseSQLiteTime(tsStr)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
		}
		e.Timestamp = ts

		if details.Valid && details.String != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(details.String), &m); err == nil {
				e.Details = m
			}
		}

		if durationSeconds.Valid && durationSeconds.Int64 > 0 {
			e.Duration = time.Duration(durationSeconds.Int64) * time.Second
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity_log: %w", err)
	}
	return out, nil
}

// GetStats returns aggregated stats for an account, or nil when it has no
// recorded activity.
func (d *DB) GetStats(provider, email string) (*AccountStats, error) {
	if d == nil || d.conn == nil {
		return nil, fmt.Errorf("db is not open")
	}

	provider = strings.TrimSpace(provider)
	email = strings.ToLower(strings.TrimSpace(email))
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	var stats AccountStats
	var lastSignIn sql.NullString
	var lastError sql.NullString

	err := d.conn.QueryRow(
		`SELECT provider, email, total_sign_ins, total_errors, total_session_seconds, last_sign_in, last_error
		 FROM account_stats
		 WHERE provider = ? AND email = ?`,
		provider,
		email,
	).Scan(
		&stats.Provider,
		&stats.Email,
		&stats.TotalSignIns,
		&stats.TotalErrors,
		&stats.TotalSessionSeconds,
		&lastSignIn,
		&lastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query account_stats: %w", err)
	}

	if lastSignIn.Valid && lastSignIn.String != "" {
		if ts, err := parseSQLiteTime(lastSignIn.String); err == nil {
			stats.LastSignIn = ts
		}
	}
	if lastError.Valid && lastError.String != "" {
		if ts, err := parseSQLiteTime(lastError.String); err == nil {
			stats.LastError = ts
		}
	}

	return &stats, nil
}

// account_stats upserts. Each takes provider, email and one value.
const (
	upsertSignIn = `INSERT INTO account_stats (provider, email, total_sign_ins, last_sign_in)
	 VALUES (?, ?, 1, ?)
	 ON CONFLICT(provider, email) DO UPDATE SET
	   total_sign_ins = total_sign_ins + 1,
	   last_sign_in = MAX(COALESCE(last_sign_in, ''), excluded.last_sign_in)`

	upsertError = `INSERT INTO account_stats (provider, email, total_errors, last_error)
	 VALUES (?, ?, 1, ?)
	 ON CONFLICT(provider, email) DO UPDATE SET
	   total_errors = total_errors + 1,
	   last_error = excluded.last_error`

	upsertSession = `INSERT INTO account_stats (provider, email, total_session_seconds)
	 VALUES (?, ?, ?)
	 ON CONFLICT(provider, email) DO UPDATE SET
	   total_session_seconds = total_session_seconds + excluded.total_session_seconds`
)

// updateAccountStats folds one event into account_stats. Sign-ups count as
// sign-ins since the new account is signed in.
func updateAccountStats(tx *sql.Tx, eventType, provider, email, ts string, durationSeconds int64) error {
	var query string
	var value any
	switch eventType {
	case EventSignIn, EventSignUp:
		query, value = upsertSignIn, ts
	case EventError:
		query, value = upsertError, ts
	case EventSignOut:
		if durationSeconds <= 0 {
			return nil
		}
		query, value = upsertSession, durationSeconds
	default:
		return nil
	}
	if _, err := tx.Exec(query, provider, email, value); err != nil {
		return fmt.Errorf("update account_stats for %s: %w", eventType, err)
	}
	return nil
}

func formatSQLiteTime(t time.Time) string {
	if t.IsZero() {
		return "1970-01-01 00:00:00"
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if ts, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format")
}
