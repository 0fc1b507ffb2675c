// CLAUDE:SUMMARY Transaction helper and the shared exec interface used by both *sql.DB and *sql.Tx.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting insert helpers
// run either standalone or as part of a caller-managed transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx wraps a *sql.Tx with the same insert/query helpers as Store, so pipeline
// code can compose multiple writes atomically.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	return fn(&Tx{tx: sqlTx})
}

// InsertSnapshot inserts a snapshot and prunes raw content, within the transaction.
func (t *Tx) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, watch_id, fetched_at, raw, extracted, content_hash, raw_hash, etag, last_modified)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.WatchID, snap.FetchedAt, snap.Raw, snap.Extracted, snap.ContentHash,
		snap.RawHash, snap.ETag, snap.LastMod,
	); err != nil {
		return err
	}
	return pruneRaw(ctx, t.tx, snap.WatchID)
}

// InsertChange inserts a change record within the transaction.
func (t *Tx) InsertChange(ctx context.Context, c *Change) error {
	return insertChange(ctx, t.tx, c)
}

// PutAgentMemory upserts a watch's agent memory within the transaction.
func (t *Tx) PutAgentMemory(ctx context.Context, m *AgentMemory) error {
	return putAgentMemory(ctx, t.tx, m)
}
