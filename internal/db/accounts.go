package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an account lookup matches nothing.
var ErrNotFound = errors.New("db: not found")

// ErrDuplicateEmail is returned when an account with the email exists.
var ErrDuplicateEmail = errors.New("db: email already registered")

// Account is a row of the local provider's users table.
type Account struct {
	UID            string
	Email          string
	PasswordHash   string
	DisplayName    string
	PhotoURL       string
	EmailVerified  bool
	Disabled       bool
	FailedAttempts int
	LockedUntil    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PasswordReset is a queued reset message in the local outbox.
type PasswordReset struct {
	ID        int64
	UID       string
	Email     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

const accountColumns = `uid, email, password_hash, display_name, photo_url, email_verified, disabled,
	failed_attempts, locked_until, created_at, updated_at`

// CreateAccount inserts a new account.
func (d *DB) CreateAccount(ctx context.Context, a Account) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	if strings.TrimSpace(a.UID) == "" || strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("uid and email are required")
	}

	now := formatSQLiteTime(time.Now())
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO users (uid, email, password_hash, display_name, photo_url, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UID,
		strings.ToLower(strings.TrimSpace(a.Email)),
		a.PasswordHash,
		a.DisplayName,
		a.PhotoURL,
		boolToInt(a.EmailVerified),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// AccountByEmail looks an account up by email, case-insensitively.
func (d *DB) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return d.queryAccount(ctx, `WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// AccountByUID looks an account up by uid.
func (d *DB) AccountByUID(ctx context.Context, uid string) (*Account, error) {
	return d.queryAccount(ctx, `WHERE uid = ?`, uid)
}

func (d *DB) queryAccount(ctx context.Context, where string, arg any) (*Account, error) {
	if d == nil || d.conn == nil {
		return nil, fmt.Errorf("db is not open")
	}

	var a Account
	var verified, disabled int
	var lockedUntil sql.NullString
	var createdAt, updatedAt string

	err := d.conn.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users `+where, arg).Scan(
		&a.UID,
		&a.Email,
		&a.PasswordHash,
		&a.DisplayName,
		&a.PhotoURL,
		&verified,
		&disabled,
		&a.FailedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	a.EmailVerified = verified != 0
	a.Disabled = disabled != 0
	if lockedUntil.Valid && lockedUntil.String != "" {
		if ts, err := parseSQLiteTime(lockedUntil.String); err == nil {
			a.LockedUntil = ts
		}
	}
	if ts, err := parseSQLiteTime(createdAt); err == nil {
		a.CreatedAt = ts
	}
	if ts, err := parseSQLiteTime(updatedAt); err == nil {
		a.UpdatedAt = ts
	}
	return &a, nil
}

// UpdateAccountProfile sets the non-nil profile fields of uid.
func (d *DB) UpdateAccountProfile(ctx context.Context, uid string, displayName, photoURL *string) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}

	sets := []string{"updated_at = ?"}
	args := []any{formatSQLiteTime(time.Now())}
	if displayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *displayName)
	}
	if photoURL != nil {
		sets = append(sets, "photo_url = ?")
		args = append(args, *photoURL)
	}
	args = append(args, uid)

	res, err := d.conn.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE uid = ?`, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash for uid.
func (d *DB) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	res, err := d.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, failed_attempts = 0, locked_until = NULL, updated_at = ? WHERE uid = ?`,
		hash, formatSQLiteTime(time.Now()), uid)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordFailedAttempt increments the failure counter for uid and locks the
// account until lockUntil once the counter reaches max. It returns the new
// counter value.
func (d *DB) RecordFailedAttempt(ctx context.Context, uid string, max int, lockUntil time.Time) (int, error) {
	var attempts int
	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`UPDATE users SET failed_attempts = failed_attempts + 1 WHERE uid = ? RETURNING failed_attempts`,
			uid,
		).Scan(&attempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update failed attempts: %w", err)
		}
		if max > 0 && attempts >= max {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET locked_until = ?, failed_attempts = 0 WHERE uid = ?`,
				formatSQLiteTime(lockUntil), uid,
			); err != nil {
				return fmt.Errorf("lock user: %w", err)
			}
		}
		return nil
	})
	return attempts, err
}

// ClearFailedAttempts resets the failure counter and any lock for uid.
func (d *DB) ClearFailedAttempts(ctx context.Context, uid string) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	if _, err := d.conn.ExecContext(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL WHERE uid = ?`, uid,
	); err != nil {
		return fmt.Errorf("clear failed attempts: %w", err)
	}
	return nil
}

// SetAccountDisabled toggles the disabled flag for the account with email.
func (d *DB) SetAccountDisabled(ctx context.Context, email string, disabled bool) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	res, err := d.conn.ExecContext(ctx,
		`UPDATE users SET disabled = ? WHERE email = ?`,
		boolToInt(disabled), strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("update disabled: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePasswordReset queues a reset message.
func (d *DB) CreatePasswordReset(ctx context.Context, r PasswordReset) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := d.conn.ExecContext(ctx,
		`INSERT INTO password_resets (uid, email, code, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		r.UID,
		strings.ToLower(strings.TrimSpace(r.Email)),
		r.Code,
		formatSQLiteTime(created),
		formatSQLiteTime(r.ExpiresAt),
	); err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// PasswordResets lists queued resets for email, newest first.
func (d *DB) PasswordResets(ctx context.Context, email string) ([]PasswordReset, error) {
	if d == nil || d.conn == nil {
		return nil, fmt.Errorf("db is not open")
	}
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, uid, email, code, created_at, expires_at
		 FROM password_resets
		 WHERE email = ? AND used_at IS NULL
		 ORDER BY id DESC`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("query password_resets: %w", err)
	}
	defer rows.Close()

	var out []PasswordReset
	for rows.Next() {
		var r PasswordReset
		var created, expires string
		if err := rows.Scan(&r.ID, &r.UID, &r.Email, &r.Code, &created, &expires); err != nil {
			return nil, fmt.Errorf("scan password_resets: %w", err)
		}
		if ts, err := parseSQLiteTime(created); err == nil {
			r.CreatedAt = ts
		}
		if ts, err := parseSQLiteTime(expires); err == nil {
			r.ExpiresAt = ts
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password_resets: %w", err)
	}
	return out, nil
}

// ConsumePasswordReset marks code used and returns the reset it belongs to.
// Expired or already used codes return ErrNotFound.
func (d *DB) ConsumePasswordReset(ctx context.Context, code string, now time.Time) (*PasswordReset, error) {
	var r PasswordReset
	err := d.WithTx(ctx, func(tx *sql.Tx) error {
		var expires string
		err := tx.QueryRowContext(ctx,
			`SELECT id, uid, email, code, expires_at FROM password_resets WHERE code = ? AND used_at IS NULL`,
			code,
		).Scan(&r.ID, &r.UID, &r.Email, &r.Code, &expires)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("query password reset: %w", err)
		}
		if ts, err := parseSQLiteTime(expires); err == nil {
			r.ExpiresAt = ts
		}
		if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE password_resets SET used_at = ? WHERE id = ?`,
			formatSQLiteTime(now), r.ID,
		); err != nil {
			return fmt.Errorf("mark password reset used: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: unique")
}
