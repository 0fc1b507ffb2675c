package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys=ON")
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplySchema(t *testing.T) {
	// WHAT: schema creates every table without error.
	db := openTestDB(t)
	for _, table := range []string{"watches", "snapshots", "changes", "agent_memory", "global_memory"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInsertAndGetWatch(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	w := NewWatch("w-1", "example", "https://example.com")
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}

	got, err := s.GetWatch(ctx, "w-1")
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got.Name != "example" {
		t.Errorf("name: got %q", got.Name)
	}
	if got.Engine != EngineHTTP {
		t.Errorf("engine: got %q, want http", got.Engine)
	}
	if got.Extraction.Strategy != ExtractAuto {
		t.Errorf("extraction strategy: got %q, want auto", got.Extraction.Strategy)
	}
	if !got.Normalization.StripWhitespace {
		t.Error("strip_whitespace should default true")
	}
}

func TestDueWatchesIncludesNeverAttemptedWatch(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	w := NewWatch("w-1", "fresh", "https://example.com")
	w.IntervalSecs = 900
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}

	due, err := s.DueWatches(ctx)
	if err != nil {
		t.Fatalf("due watches: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected the never-attempted watch to be due, got %d", len(due))
	}
}

func TestRecordFetchSuccessAdvancesNextDueByInterval(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	w := NewWatch("w-1", "healthy", "https://example.com")
	w.IntervalSecs = 3600
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}
	if err := s.RecordFetchSuccess(ctx, w.ID); err != nil {
		t.Fatalf("record fetch success: %v", err)
	}

	due, err := s.DueWatches(ctx)
	if err != nil {
		t.Fatalf("due watches: %v", err)
	}
	if len(due) != 0 {
		t.Error("a watch just successfully fetched with a 1h interval should not be due yet")
	}

	got, err := s.GetWatch(ctx, w.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got.FailCount != 0 || got.LastError != "" {
		t.Error("a successful fetch should clear failure state")
	}
	if got.LastAttemptAt == 0 {
		t.Error("expected last_attempt_at to be recorded")
	}
}

func TestRecordFetchErrorAdvancesNextDueByIntervalNotEveryTick(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	w := NewWatch("w-1", "flaky", "https://example.com")
	w.IntervalSecs = 3600
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}
	if err := s.RecordFetchError(ctx, w.ID, "connection refused"); err != nil {
		t.Fatalf("record fetch error: %v", err)
	}

	due, err := s.DueWatches(ctx)
	if err != nil {
		t.Fatalf("due watches: %v", err)
	}
	if len(due) != 0 {
		t.Error("a failing watch's next_due advances by interval_secs like any other outcome, so it should not remain due on every tick")
	}

	got, err := s.GetWatch(ctx, w.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got.FailCount != 1 {
		t.Errorf("fail_count: got %d, want 1", got.FailCount)
	}
	if got.LastError != "connection refused" {
		t.Errorf("last_error: got %q", got.LastError)
	}
}

func TestDueWatchesKeepsRetryingAPersistentlyFailingWatch(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	w := NewWatch("w-1", "broken", "https://example.com")
	w.IntervalSecs = 1
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := s.RecordFetchError(ctx, w.ID, "boom"); err != nil {
			t.Fatalf("record fetch error: %v", err)
		}
	}

	got, err := s.GetWatch(ctx, w.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got.FailCount != 20 {
		t.Fatalf("fail_count: got %d, want 20", got.FailCount)
	}

	// A high fail_count must never permanently remove a watch from
	// selection: the only way it stops being due is the interval itself,
	// which has not yet elapsed since the last attempt.
	due, err := s.DueWatches(ctx)
	if err != nil {
		t.Fatalf("due watches: %v", err)
	}
	if len(due) != 0 {
		t.Error("a watch just attempted should not be due before its interval elapses")
	}

	// Force the interval to have elapsed and confirm the watch is due again
	// regardless of its fail_count, so it can recover via RecordFetchSuccess.
	if _, err := s.DB.ExecContext(ctx, `UPDATE watches SET last_attempt_at = 0 WHERE id = ?`, w.ID); err != nil {
		t.Fatalf("force due: %v", err)
	}
	due, err = s.DueWatches(ctx)
	if err != nil {
		t.Fatalf("due watches: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("a persistently failing watch must still be retried once due, got %d", len(due))
	}
}

func TestInsertWatchDuplicateName(t *testing.T) {
	// WHAT: two watches sharing a name is rejected.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	if err := s.InsertWatch(ctx, NewWatch("w-1", "dup", "https://a.example")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := s.InsertWatch(ctx, NewWatch("w-2", "dup", "https://b.example"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
}

func TestGetWatchNotFound(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	_, err := s.GetWatch(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSnapshotRawHashRoundTripsSeparatelyFromContentHash(t *testing.T) {
	// WHAT: raw_hash (the raw fetch body's hash) and content_hash (the
	// normalized/extracted text's hash) are distinct hash spaces that must
	// not be conflated on write or read.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()
	w := NewWatch("w-1", "watch", "https://example.com")
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}

	snap := &Snapshot{
		ID:          "s1",
		WatchID:     w.ID,
		Extracted:   "hello",
		ContentHash: "content-hash-value",
		RawHash:     "raw-hash-value",
	}
	if err := s.InsertSnapshot(ctx, snap); err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}

	got, err := s.LatestSnapshot(ctx, w.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if got.ContentHash != "content-hash-value" {
		t.Errorf("content_hash: got %q", got.ContentHash)
	}
	if got.RawHash != "raw-hash-value" {
		t.Errorf("raw_hash: got %q", got.RawHash)
	}
}

func TestSnapshotRawRetention(t *testing.T) {
	// WHAT: only the 5 most recent snapshots' raw bytes survive; older ones
	// are pruned to nil in the same insert.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()
	w := NewWatch("w-1", "watch", "https://example.com")
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}

	for i := 0; i < 8; i++ {
		snap := &Snapshot{
			ID:          idFor(i),
			WatchID:     w.ID,
			FetchedAt:   int64(i),
			Raw:         []byte("body"),
			Extracted:   "text",
			ContentHash: idFor(i),
		}
		if err := s.InsertSnapshot(ctx, snap); err != nil {
			t.Fatalf("insert snapshot %d: %v", i, err)
		}
	}

	count, err := s.CountRawSnapshots(ctx, w.ID)
	if err != nil {
		t.Fatalf("count raw: %v", err)
	}
	if count != MaxRawSnapshots {
		t.Errorf("raw snapshot count: got %d, want %d", count, MaxRawSnapshots)
	}
}

func idFor(i int) string {
	return string(rune('a' + i))
}

func TestWithTxCommitsAtomically(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()
	w := NewWatch("w-1", "watch", "https://example.com")
	if err := s.InsertWatch(ctx, w); err != nil {
		t.Fatalf("insert watch: %v", err)
	}

	oldSnap := &Snapshot{ID: "s-old", WatchID: w.ID, ContentHash: "h1"}
	if err := s.InsertSnapshot(ctx, oldSnap); err != nil {
		t.Fatalf("insert baseline: %v", err)
	}

	newSnap := &Snapshot{ID: "s-new", WatchID: w.ID, ContentHash: "h2"}
	change := &Change{ID: "c-1", WatchID: w.ID, OldSnapshotID: oldSnap.ID, NewSnapshotID: newSnap.ID, Diff: "+line"}

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertSnapshot(ctx, newSnap); err != nil {
			return err
		}
		return tx.InsertChange(ctx, change)
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	gotChange, err := s.GetChange(ctx, "c-1")
	if err != nil {
		t.Fatalf("get change: %v", err)
	}
	if gotChange.Diff != "+line" {
		t.Errorf("diff: got %q", gotChange.Diff)
	}
}

func TestMarkChangeNotifiedIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()
	w := NewWatch("w-1", "watch", "https://example.com")
	s.InsertWatch(ctx, w)
	s.InsertSnapshot(ctx, &Snapshot{ID: "s1", WatchID: w.ID, ContentHash: "h1"})
	s.InsertSnapshot(ctx, &Snapshot{ID: "s2", WatchID: w.ID, ContentHash: "h2"})
	change := &Change{ID: "c-1", WatchID: w.ID, OldSnapshotID: "s1", NewSnapshotID: "s2"}
	if err := s.InsertChange(ctx, change); err != nil {
		t.Fatalf("insert change: %v", err)
	}

	if err := s.MarkChangeNotified(ctx, "c-1"); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if err := s.MarkChangeNotified(ctx, "c-1"); err != nil {
		t.Fatalf("mark notified again: %v", err)
	}
	got, err := s.GetChange(ctx, "c-1")
	if err != nil {
		t.Fatalf("get change: %v", err)
	}
	if !got.Notified {
		t.Error("change should be notified")
	}
}

func TestAgentMemoryTruncation(t *testing.T) {
	// WHAT: a memory document over MaxMemoryBytes is trimmed before storage.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()
	w := NewWatch("w-1", "watch", "https://example.com")
	s.InsertWatch(ctx, w)

	big := map[string]interface{}{}
	for i := 0; i < 2000; i++ {
		big[idFor(i%26)+string(rune(i))] = "some moderately long value to pad size"
	}
	mem := &AgentMemory{WatchID: w.ID, Memory: big}
	if err := s.PutAgentMemory(ctx, mem); err != nil {
		t.Fatalf("put memory: %v", err)
	}

	got, err := s.GetAgentMemory(ctx, w.ID)
	if err != nil {
		t.Fatalf("get memory: %v", err)
	}
	if got.IsOverLimit() {
		t.Error("stored memory should not be over limit")
	}
}
