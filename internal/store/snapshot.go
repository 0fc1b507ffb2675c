// CLAUDE:SUMMARY Snapshot insert/lookup and the raw-content retention window (five most recent, per watch).
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// MaxRawSnapshots is how many of the most recent snapshots per watch retain
// their raw bytes; older snapshots keep extracted/content_hash but null out raw.
const MaxRawSnapshots = 5

// InsertSnapshot inserts a snapshot and prunes raw content down to the
// retention window in the same call. Callers that need this atomic with a
// Change insert should wrap both in a transaction via WithTx.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) error {
	return s.insertSnapshot(ctx, s.DB, snap)
}

func (s *Store) insertSnapshot(ctx context.Context, ex execer, snap *Snapshot) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO snapshots (id, watch_id, fetched_at, raw, extracted, content_hash, raw_hash, etag, last_modified)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.WatchID, snap.FetchedAt, snap.Raw, snap.Extracted, snap.ContentHash,
		snap.RawHash, snap.ETag, snap.LastMod,
	)
	if err != nil {
		return err
	}
	return pruneRaw(ctx, ex, snap.WatchID)
}

// pruneRaw nulls out raw on all but the MaxRawSnapshots most recent
// snapshots for a watch.
func pruneRaw(ctx context.Context, ex execer, watchID string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE snapshots SET raw = NULL WHERE watch_id = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE watch_id = ? ORDER BY fetched_at DESC LIMIT ?
		)`, watchID, watchID, MaxRawSnapshots)
	return err
}

// LatestSnapshot returns the most recent snapshot for a watch, or nil if
// none exists.
func (s *Store) LatestSnapshot(ctx context.Context, watchID string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, watch_id, fetched_at, raw, extracted, content_hash, raw_hash, etag, last_modified
		FROM snapshots WHERE watch_id = ? ORDER BY fetched_at DESC, rowid DESC LIMIT 1`, watchID)
	return scanSnapshot(row)
}

// GetSnapshot retrieves a snapshot by ID.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, watch_id, fetched_at, raw, extracted, content_hash, raw_hash, etag, last_modified
		FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

// CountRawSnapshots returns how many snapshots for a watch currently retain
// raw bytes. Used by tests asserting the retention invariant.
func (s *Store) CountRawSnapshots(ctx context.Context, watchID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE watch_id = ? AND raw IS NOT NULL`, watchID).Scan(&n)
	return n, err
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.WatchID, &snap.FetchedAt, &snap.Raw, &snap.Extracted,
		&snap.ContentHash, &snap.RawHash, &snap.ETag, &snap.LastMod)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &snap, nil
}
