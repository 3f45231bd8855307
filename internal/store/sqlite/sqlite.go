// Package sqlite implements store.Table on top of SQLite.
//
// Every logical table lives in one physical `records` table keyed by
// (tbl, pk, sk), with the item itself stored as a JSON document. That keeps
// the schemaless item model of the other backends, and the composite primary
// key gives scans a stable (partition, sort) order to paginate over.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain
// is needed to build the server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"

	"github.com/sakif/matchday-predictor/internal/store"
)

const defaultPageSize = 100

// DB owns the connection pool. Tables created from it share the pool.
type DB struct {
	conn     *sql.DB
	pageSize int
}

// Option configures a DB.
type Option func(*DB)

// WithPageSize caps how many records one Scan call examines.
func WithPageSize(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.pageSize = n
		}
	}
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/predictions.db" → file-based database
//   - ":memory:"            → in-memory database, used by tests
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection serializes writers, which makes the read-check-write in
	// Update and Increment atomic. It also keeps ":memory:" a single database;
	// every new connection to ":memory:" would otherwise get its own.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Table returns a store.Table view over the records belonging to schema.
func (db *DB) Table(schema store.Schema) *Table {
	return &Table{db: db, schema: schema}
}

// migrate is idempotent; CREATE ... IF NOT EXISTS is safe on existing files.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			tbl        TEXT NOT NULL,
			pk         TEXT NOT NULL,
			sk         TEXT NOT NULL DEFAULT '',
			data       TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tbl, pk, sk)
		) WITHOUT ROWID;
	`)
	if err != nil {
		return fmt.Errorf("creating records table: %w", err)
	}
	return nil
}
