// CLAUDE:SUMMARY Applies the kto SQL schema: watches, snapshots, changes, agent_memory, global_memory.
package store

import "database/sql"

// Schema is the complete kto schema. Complex Watch sub-shapes (extraction,
// normalization, filters, agent_config, headers, tags) are stored as
// JSON-encoded TEXT columns, decoded by scanWatch.
const Schema = `
CREATE TABLE IF NOT EXISTS watches (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    url             TEXT NOT NULL,
    engine          TEXT NOT NULL DEFAULT 'http',
    extraction      TEXT NOT NULL DEFAULT '{"strategy":"auto"}',
    normalization   TEXT NOT NULL DEFAULT '{"strip_whitespace":true}',
    filters         TEXT NOT NULL DEFAULT '[]',
    agent_config    TEXT NOT NULL DEFAULT '{}',
    interval_secs   INTEGER NOT NULL DEFAULT 900,
    enabled         INTEGER NOT NULL DEFAULT 1,
    headers         TEXT NOT NULL DEFAULT '{}',
    cookie_file     TEXT NOT NULL DEFAULT '',
    storage_state   TEXT NOT NULL DEFAULT '',
    notify_target   TEXT NOT NULL DEFAULT '',
    tags            TEXT NOT NULL DEFAULT '[]',
    last_error      TEXT NOT NULL DEFAULT '',
    fail_count      INTEGER NOT NULL DEFAULT 0,
    last_attempt_at INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_watches_name ON watches(name);
CREATE INDEX IF NOT EXISTS idx_watches_enabled ON watches(enabled);

CREATE TABLE IF NOT EXISTS snapshots (
    id            TEXT PRIMARY KEY,
    watch_id      TEXT NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
    fetched_at    INTEGER NOT NULL,
    raw           BLOB,
    extracted     TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    raw_hash      TEXT NOT NULL DEFAULT '',
    etag          TEXT NOT NULL DEFAULT '',
    last_modified TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_snapshots_watch ON snapshots(watch_id, fetched_at DESC);

CREATE TABLE IF NOT EXISTS changes (
    id              TEXT PRIMARY KEY,
    watch_id        TEXT NOT NULL REFERENCES watches(id) ON DELETE CASCADE,
    detected_at     INTEGER NOT NULL,
    old_snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    new_snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    diff            TEXT NOT NULL,
    filter_passed   INTEGER NOT NULL DEFAULT 0,
    agent_response  TEXT,
    notified        INTEGER NOT NULL DEFAULT 0,
    notify_attempts INTEGER NOT NULL DEFAULT 0,
    next_retry_at   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_changes_watch ON changes(watch_id, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_changes_pending_notify ON changes(notified, next_retry_at);

CREATE TABLE IF NOT EXISTS agent_memory (
    watch_id   TEXT PRIMARY KEY REFERENCES watches(id) ON DELETE CASCADE,
    memory     TEXT NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS global_memory (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    memory     TEXT NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL
);
`

// Migration001NotifyRetry adds retry bookkeeping columns to changes for
// databases created before backoff-capped notification retry existed.
const Migration001NotifyRetry = `
ALTER TABLE changes ADD COLUMN notify_attempts INTEGER NOT NULL DEFAULT 0;
`

const Migration002NotifyRetryAt = `
ALTER TABLE changes ADD COLUMN next_retry_at INTEGER NOT NULL DEFAULT 0;
`

// Migration003WatchLastAttempt adds fetch-attempt bookkeeping to watches for
// databases created before next-due tracking (last_attempt_at plus
// interval_secs) existed.
const Migration003WatchLastAttempt = `
ALTER TABLE watches ADD COLUMN last_attempt_at INTEGER NOT NULL DEFAULT 0;
`

// Migration004SnapshotRawHash adds the raw-body hash to snapshots for
// databases created before the fetcher's raw-fetch-unchanged short-circuit
// tracked it separately from content_hash (the hash of extracted/normalized
// text, a different hash space).
const Migration004SnapshotRawHash = `
ALTER TABLE snapshots ADD COLUMN raw_hash TEXT NOT NULL DEFAULT '';
`

// ApplySchema creates all tables and indexes on the given database, then
// applies idempotent column migrations for schemas created by an earlier
// version of this package.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	applyColumnMigration(db, "changes", "notify_attempts", Migration001NotifyRetry)
	applyColumnMigration(db, "changes", "next_retry_at", Migration002NotifyRetryAt)
	applyColumnMigration(db, "watches", "last_attempt_at", Migration003WatchLastAttempt)
	applyColumnMigration(db, "snapshots", "raw_hash", Migration004SnapshotRawHash)
	return nil
}

// applyColumnMigration adds a column if it doesn't already exist (idempotent).
func applyColumnMigration(db *sql.DB, table, column, ddl string) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil || count > 0 {
		return
	}
	db.Exec(ddl)
}
