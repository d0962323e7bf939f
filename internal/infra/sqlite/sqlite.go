// Package sqlite provides pure-Go SQLite-backed storage for the budget
// ledger, credit ledger, and conversation memory store. Each store owns its
// own database file under the daemon's data directory.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO required
)

// DB wraps a single-writer SQLite connection opened in WAL mode.
type DB struct {
	conn *sql.DB
}

// Open creates or opens the database file at dir/name, enabling WAL mode,
// foreign keys, and a 5-second busy timeout. SQLite tolerates only one
// concurrent writer, so the pool is pinned to a single connection.
func Open(dir, name string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(dir, name)
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	return &DB{conn: conn}, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the connection is still usable, used by the health checker.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// migrate runs idempotent migration or write statements in sequence.
func (d *DB) migrate(statements []string) error {
	for _, stmt := range statements {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
