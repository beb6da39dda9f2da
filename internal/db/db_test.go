package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenAt_CreatesDBAndRunsMigrations(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "authdeck.db")

	d, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file stat error = %v", err)
	}

	for _, table := range []string{"schema_version", "activity_log", "account_stats", "users", "password_resets"} {
		var name string
		if err := d.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	if err := RunMigrations(d.Conn()); err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}

	var version int
	if err := d.Conn().QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read schema_version error = %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("schema_version max = %d, want %d", version, len(migrations))
	}
}

func TestOpenAt_EnablesWALMode(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "authdeck.db")

	d, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	var mode string
	if err := d.Conn().QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestOpenAt_CorruptDB_RenamedAndRecreated(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "authdeck.db")

	if err := os.WriteFile(path, []byte("not a database"), 0600); err != nil {
		t.Fatalf("write corrupt db: %v", err)
	}

	d, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing after recreate: %v", err)
	}

	backups, err := filepath.Glob(path + ".corrupt.*")
	if err != nil {
		t.Fatalf("glob corrupt backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("corrupt backup count = %d, want 1", len(backups))
	}
}

func TestOpenAt_CleansPath(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenAt(filepath.Join(dir, "nested", "..", "authdeck.db"))
	if err != nil {
		t.Fatalf("OpenAt() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if got, want := d.Path(), filepath.Join(dir, "authdeck.db"); got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

func TestClose_NilSafe(t *testing.T) {
	var d *DB
	if err := d.Close(); err != nil {
		t.Fatalf("nil Close() error = %v", err)
	}
	if d.Path() != "" || d.Conn() != nil {
		t.Fatal("nil DB should report empty path and nil conn")
	}
}

func TestOpenAt_EmptyPath(t *testing.T) {
	if _, err := OpenAt("  "); err == nil {
		t.Fatal("OpenAt(\"\") error = nil, want error")
	}
}
