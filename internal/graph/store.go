package graph

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store defines the transactional interface to the graph database.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Store interface {
	// WriteTx runs fn inside a read-write transaction. If fn returns an
	// error the transaction is rolled back and nothing is persisted.
	WriteTx(ctx context.Context, fn func(tx *Tx) error) error
	// ReadTx runs fn inside a read-only transaction so every read in fn
	// observes the store at a single logical instant.
	ReadTx(ctx context.Context, fn func(tx *Tx) error) error
	Path() string
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// Tx exposes the typed graph operations available inside a transaction.
type Tx struct {
	tx  *sql.Tx
	now int64
}

// WriteTx implements Store.
func (db *DB) WriteTx(ctx context.Context, fn func(tx *Tx) error) error {
	return db.runTx(ctx, false, fn)
}

// ReadTx implements Store.
func (db *DB) ReadTx(ctx context.Context, fn func(tx *Tx) error) error {
	return db.runTx(ctx, true, fn)
}

func (db *DB) runTx(ctx context.Context, readOnly bool, fn func(tx *Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(&Tx{tx: tx, now: time.Now().Unix()}); err != nil {
		return err
	}
	return tx.Commit()
}
