// CLAUDE:SUMMARY Change insert/list/notify-state transitions and backoff-capped retry bookkeeping.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertChange inserts a change record outside of any caller-managed
// transaction. Prefer Tx.InsertChange when it must be atomic with the
// triggering snapshot insert.
func (s *Store) InsertChange(ctx context.Context, c *Change) error {
	return insertChange(ctx, s.DB, c)
}

func insertChange(ctx context.Context, ex execer, c *Change) error {
	if c.DetectedAt == 0 {
		c.DetectedAt = time.Now().Unix()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO changes (id, watch_id, detected_at, old_snapshot_id, new_snapshot_id,
		diff, filter_passed, agent_response, notified, notify_attempts, next_retry_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.WatchID, c.DetectedAt, c.OldSnapshotID, c.NewSnapshotID, c.Diff,
		c.FilterPassed, c.AgentResponse, c.Notified, 0, 0,
	)
	return err
}

const changeColumns = `id, watch_id, detected_at, old_snapshot_id, new_snapshot_id,
	diff, filter_passed, agent_response, notified, notify_attempts, next_retry_at`

// GetChange retrieves a change by ID.
func (s *Store) GetChange(ctx context.Context, id string) (*Change, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM changes WHERE id = ?`, id)
	c, attempts, retryAt, err := scanChange(row)
	if err != nil {
		return nil, err
	}
	_ = attempts
	_ = retryAt
	return c, nil
}

// ListChanges returns the most recent changes for a watch, newest first.
func (s *Store) ListChanges(ctx context.Context, watchID string, limit int) ([]*Change, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+changeColumns+` FROM changes WHERE watch_id = ? ORDER BY detected_at DESC LIMIT ?`,
		watchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		c, _, _, err := scanChangeRows(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// MarkChangeNotified marks a change as successfully notified. Idempotent:
// once notified=true it stays true, guaranteeing at-most-once alerting.
func (s *Store) MarkChangeNotified(ctx context.Context, changeID string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE changes SET notified = 1 WHERE id = ?`, changeID)
	return err
}

// RetryBackoffCap is the maximum spacing between notification retries for a
// change whose transport keeps failing.
const RetryBackoffCap = time.Hour

// RecordNotifyFailure increments the retry counter and schedules the next
// retry using exponential backoff capped at RetryBackoffCap.
func (s *Store) RecordNotifyFailure(ctx context.Context, changeID string) error {
	row := s.DB.QueryRowContext(ctx, `SELECT notify_attempts FROM changes WHERE id = ?`, changeID)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return err
	}
	attempts++
	backoff := time.Duration(1<<uint(minInt(attempts, 12))) * time.Second
	if backoff > RetryBackoffCap {
		backoff = RetryBackoffCap
	}
	nextRetry := time.Now().Add(backoff).Unix()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE changes SET notify_attempts = ?, next_retry_at = ? WHERE id = ?`,
		attempts, nextRetry, changeID)
	return err
}

// PendingNotifications returns unnotified changes whose retry backoff has
// elapsed, for the given watch.
func (s *Store) PendingNotifications(ctx context.Context, watchID string) ([]*Change, error) {
	now := time.Now().Unix()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+changeColumns+` FROM changes
		WHERE watch_id = ? AND notified = 0 AND next_retry_at <= ?
		ORDER BY detected_at ASC`, watchID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		c, _, _, err := scanChangeRows(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func scanChange(row *sql.Row) (*Change, int, int64, error) {
	var c Change
	var filterPassed, notified int
	var agentResponse sql.NullString
	var attempts int
	var retryAt int64
	err := row.Scan(&c.ID, &c.WatchID, &c.DetectedAt, &c.OldSnapshotID, &c.NewSnapshotID,
		&c.Diff, &filterPassed, &agentResponse, &notified, &attempts, &retryAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, 0, nil
		}
		return nil, 0, 0, fmt.Errorf("scan change: %w", err)
	}
	c.FilterPassed = filterPassed != 0
	c.Notified = notified != 0
	if agentResponse.Valid {
		v := agentResponse.String
		c.AgentResponse = &v
	}
	return &c, attempts, retryAt, nil
}

func scanChangeRows(rows *sql.Rows) (*Change, int, int64, error) {
	var c Change
	var filterPassed, notified int
	var agentResponse sql.NullString
	var attempts int
	var retryAt int64
	err := rows.Scan(&c.ID, &c.WatchID, &c.DetectedAt, &c.OldSnapshotID, &c.NewSnapshotID,
		&c.Diff, &filterPassed, &agentResponse, &notified, &attempts, &retryAt)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("scan change: %w", err)
	}
	c.FilterPassed = filterPassed != 0
	c.Notified = notified != 0
	if agentResponse.Valid {
		v := agentResponse.String
		c.AgentResponse = &v
	}
	return &c, attempts, retryAt, nil
}

// marshalAgentResponse is a small helper for callers building a Change from
// an AgentVerdict.
func marshalAgentResponse(v *AgentVerdict) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// MarshalAgentResponse exposes marshalAgentResponse for pipeline code.
func MarshalAgentResponse(v *AgentVerdict) (*string, error) {
	return marshalAgentResponse(v)
}
