// CLAUDE:SUMMARY Watch CRUD, name-or-id lookup, tag/enabled filtering, and fetch-health bookkeeping.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InsertWatch adds a new watch. Returns ErrDuplicateName if the name is
// already taken.
func (s *Store) InsertWatch(ctx context.Context, w *Watch) error {
	if w.CreatedAt == 0 {
		w.CreatedAt = time.Now().Unix()
	}
	extraction, err := json.Marshal(w.Extraction)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}
	normalization, err := json.Marshal(w.Normalization)
	if err != nil {
		return fmt.Errorf("marshal normalization: %w", err)
	}
	filters, err := json.Marshal(nonNilFilters(w.Filters))
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	agentConfig, err := json.Marshal(w.AgentConfig)
	if err != nil {
		return fmt.Errorf("marshal agent_config: %w", err)
	}
	headers, err := json.Marshal(nonNilHeaders(w.Headers))
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	tags, err := json.Marshal(nonNilTags(w.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO watches (id, name, url, engine, extraction, normalization,
		filters, agent_config, interval_secs, enabled, headers, cookie_file,
		storage_state, notify_target, tags, last_error, fail_count, last_attempt_at, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Name, w.URL, string(w.Engine), string(extraction), string(normalization),
		string(filters), string(agentConfig), w.IntervalSecs, w.Enabled, string(headers),
		w.CookieFile, w.StorageState, w.NotifyTarget, string(tags), w.LastError, w.FailCount,
		w.LastAttemptAt, w.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, w.Name)
	}
	return err
}

const watchColumns = `id, name, url, engine, extraction, normalization, filters,
	agent_config, interval_secs, enabled, headers, cookie_file, storage_state,
	notify_target, tags, last_error, fail_count, last_attempt_at, created_at`

// GetWatch retrieves a watch by ID or by name (name lookup is a fallback
// when the argument does not match any ID), mirroring the original
// implementation's "id or name" resolution used by the CLI.
func (s *Store) GetWatch(ctx context.Context, idOrName string) (*Watch, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+watchColumns+` FROM watches WHERE id = ? OR name = ? ORDER BY id = ? DESC LIMIT 1`,
		idOrName, idOrName, idOrName)
	w, err := scanWatch(row)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNotFound
	}
	return w, nil
}

// WatchFilter narrows ListWatches. Nil pointers/empty slices mean "no filter".
type WatchFilter struct {
	Tags    []string
	Enabled *bool
}

// ListWatches returns watches matching the filter, newest first.
func (s *Store) ListWatches(ctx context.Context, f WatchFilter) ([]*Watch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches WHERE 1=1`
	var args []interface{}
	if f.Enabled != nil {
		query += ` AND enabled = ?`
		args = append(args, *f.Enabled)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []*Watch
	for rows.Next() {
		w, err := scanWatchRows(rows)
		if err != nil {
			return nil, err
		}
		if len(f.Tags) > 0 && !hasAnyTag(w.Tags, f.Tags) {
			continue
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// UpdateWatch replaces a watch's mutable fields.
func (s *Store) UpdateWatch(ctx context.Context, w *Watch) error {
	extraction, err := json.Marshal(w.Extraction)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}
	normalization, err := json.Marshal(w.Normalization)
	if err != nil {
		return fmt.Errorf("marshal normalization: %w", err)
	}
	filters, err := json.Marshal(nonNilFilters(w.Filters))
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	agentConfig, err := json.Marshal(w.AgentConfig)
	if err != nil {
		return fmt.Errorf("marshal agent_config: %w", err)
	}
	headers, err := json.Marshal(nonNilHeaders(w.Headers))
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	tags, err := json.Marshal(nonNilTags(w.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`UPDATE watches SET name=?, url=?, engine=?, extraction=?, normalization=?,
		filters=?, agent_config=?, interval_secs=?, enabled=?, headers=?,
		cookie_file=?, storage_state=?, notify_target=?, tags=?
		WHERE id=?`,
		w.Name, w.URL, string(w.Engine), string(extraction), string(normalization),
		string(filters), string(agentConfig), w.IntervalSecs, w.Enabled, string(headers),
		w.CookieFile, w.StorageState, w.NotifyTarget, string(tags), w.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, w.Name)
	}
	return err
}

// DeleteWatch removes a watch. Cascades to snapshots, changes, and agent
// memory via declared foreign keys.
func (s *Store) DeleteWatch(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM watches WHERE id = ?`, id)
	return err
}

// DueWatches returns every enabled watch whose next-due time has passed.
// Next-due is last_attempt_at + interval_secs regardless of the outcome of
// the last attempt: a fetch error does not delay the next attempt beyond
// its own duration, and fail_count never excludes a watch from selection,
// so a persistently failing watch keeps getting retried at its normal
// interval rather than being silently disabled. A watch never attempted
// (last_attempt_at = 0) is always due.
func (s *Store) DueWatches(ctx context.Context) ([]*Watch, error) {
	now := time.Now().Unix()
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+watchColumns+` FROM watches w
		WHERE enabled = 1
		AND (
			last_attempt_at = 0
			OR last_attempt_at + interval_secs <= ?
		)
		ORDER BY created_at ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []*Watch
	for rows.Next() {
		w, err := scanWatchRows(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// RecordFetchSuccess clears a watch's failure state after a successful
// fetch (whether or not content changed), and advances next_due by
// interval_secs from now.
func (s *Store) RecordFetchSuccess(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE watches SET last_error='', fail_count=0, last_attempt_at=? WHERE id=?`,
		time.Now().Unix(), id)
	return err
}

// RecordFetchError increments a watch's failure count and records the last
// error and attempt time. fail_count/last_error are diagnostic only: they do
// not affect DueWatches selection, so a persistently failing watch keeps
// being retried at its normal interval and can recover on its own.
func (s *Store) RecordFetchError(ctx context.Context, id, errMsg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE watches SET last_error=?, fail_count=fail_count+1, last_attempt_at=? WHERE id=?`,
		errMsg, time.Now().Unix(), id)
	return err
}

func scanWatch(row *sql.Row) (*Watch, error) {
	var w Watch
	var enabled int
	var engine, extraction, normalization, filters, agentConfig, headers, tags string
	err := row.Scan(&w.ID, &w.Name, &w.URL, &engine, &extraction, &normalization,
		&filters, &agentConfig, &w.IntervalSecs, &enabled, &headers, &w.CookieFile,
		&w.StorageState, &w.NotifyTarget, &tags, &w.LastError, &w.FailCount, &w.LastAttemptAt, &w.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan watch: %w", err)
	}
	return decodeWatch(&w, enabled, engine, extraction, normalization, filters, agentConfig, headers, tags)
}

func scanWatchRows(rows *sql.Rows) (*Watch, error) {
	var w Watch
	var enabled int
	var engine, extraction, normalization, filters, agentConfig, headers, tags string
	err := rows.Scan(&w.ID, &w.Name, &w.URL, &engine, &extraction, &normalization,
		&filters, &agentConfig, &w.IntervalSecs, &enabled, &headers, &w.CookieFile,
		&w.StorageState, &w.NotifyTarget, &tags, &w.LastError, &w.FailCount, &w.LastAttemptAt, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan watch: %w", err)
	}
	return decodeWatch(&w, enabled, engine, extraction, normalization, filters, agentConfig, headers, tags)
}

func decodeWatch(w *Watch, enabled int, engine, extraction, normalization, filters, agentConfig, headers, tags string) (*Watch, error) {
	w.Enabled = enabled != 0
	w.Engine = Engine(engine)

	// Fall back to sane defaults on decode failure rather than aborting the
	// whole load, matching the original store's tolerant field recovery.
	if err := json.Unmarshal([]byte(extraction), &w.Extraction); err != nil {
		w.Extraction = Extraction{Strategy: ExtractAuto}
	}
	if err := json.Unmarshal([]byte(normalization), &w.Normalization); err != nil {
		w.Normalization = DefaultNormalization()
	}
	if err := json.Unmarshal([]byte(filters), &w.Filters); err != nil {
		w.Filters = nil
	}
	if err := json.Unmarshal([]byte(agentConfig), &w.AgentConfig); err != nil {
		w.AgentConfig = AgentConfig{}
	}
	if err := json.Unmarshal([]byte(headers), &w.Headers); err != nil {
		w.Headers = map[string]string{}
	}
	if err := json.Unmarshal([]byte(tags), &w.Tags); err != nil {
		w.Tags = nil
	}
	return w, nil
}

func nonNilFilters(f []FilterRule) []FilterRule {
	if f == nil {
		return []FilterRule{}
	}
	return f
}

func nonNilHeaders(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}

func nonNilTags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

func hasAnyTag(watchTags, want []string) bool {
	for _, w := range watchTags {
		for _, t := range want {
			if w == t {
				return true
			}
		}
	}
	return false
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// violation, mapped onto a typed duplicate-name error. modernc.org/sqlite
// does not export a typed constraint-violation error, so this matches on
// message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
