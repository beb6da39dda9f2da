// Package db stores the activity log and the local provider's accounts in a
// single SQLite database.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// pragmas are applied to the single shared connection on open.
var pragmas = []string{
	`PRAGMA journal_mode=WAL;`,
	`PRAGMA foreign_keys=ON;`,
	`PRAGMA busy_timeout=5000;`,
}

// DB is an open authdeck database.
type DB struct {
	path string
	conn *sql.DB
}

// OpenAt opens (creating if needed) the database at path and migrates it to
// the latest schema. An unreadable file is moved aside to
// <path>.corrupt.<timestamp> and replaced with an empty database.
func OpenAt(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("db path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := connect(path)
	if err != nil && isCorruptSQLiteError(err) {
		if qerr := quarantine(path); qerr != nil {
			return nil, fmt.Errorf("db appears corrupt (%v): %w", err, qerr)
		}
		conn, err = connect(path)
	}
	if err != nil {
		return nil, err
	}
	return &DB{path: path, conn: conn}, nil
}

// Close closes the underlying connection. Safe on a nil DB.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Conn exposes the connection for migrations and tests.
func (d *DB) Conn() *sql.DB {
	if d == nil {
		return nil
	}
	return d.conn
}

// Path is the database file.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

func connect(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// PRAGMAs are per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := prepare(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func prepare(conn *sql.DB) error {
	if err := conn.Ping(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	return RunMigrations(conn)
}

func quarantine(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	aside := path + ".corrupt." + time.Now().UTC().Format("20060102T150405Z")
	if err := os.Rename(path, aside); err != nil {
		return fmt.Errorf("move corrupt db aside: %w", err)
	}
	return nil
}

func isCorruptSQLiteError(err error) bool {
	if errors.Is(err, os.ErrInvalid) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "malformed")
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
