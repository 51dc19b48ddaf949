// Package graph provides the SQLite-backed store for nodes, dependencies,
// plans, and views. All mutations run inside store transactions; the store is
// the sole serialization point for writes.
package graph

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Foreign keys carry the cascade invariants: deleting a node removes its
// incident edges, steps, and position entries; renaming a node (an UPDATE of
// its id) migrates every reference in the same transaction.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	node_type  TEXT NOT NULL DEFAULT 'Task',
	text       TEXT NOT NULL DEFAULT '',
	completed  INTEGER,
	due        INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deps (
	id      TEXT NOT NULL UNIQUE,
	from_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE ON UPDATE CASCADE,
	to_id   TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE ON UPDATE CASCADE,
	PRIMARY KEY (from_id, to_id)
);

CREATE INDEX IF NOT EXISTS idx_deps_to ON deps(to_id);

CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	id      TEXT PRIMARY KEY,
	plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE ON UPDATE CASCADE,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE ON UPDATE CASCADE,
	ord     REAL NOT NULL DEFAULT 0,
	UNIQUE (plan_id, node_id)
);

CREATE TABLE IF NOT EXISTS views (
	id         TEXT PRIMARY KEY,
	whitelist  TEXT,
	blacklist  TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	view_id TEXT NOT NULL REFERENCES views(id) ON DELETE CASCADE ON UPDATE CASCADE,
	node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE ON UPDATE CASCADE,
	coords  TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (view_id, node_id)
);
`

// DB wraps a sql.DB with graph-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("graph: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: apply schema: %w", err)
	}
	return &DB{conn: conn, path: dsn}, nil
}

// Path returns the database file path the store was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
