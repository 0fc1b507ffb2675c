package dbopen

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func noopSchema(*sql.DB) error { return nil }

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(":memory:", noopSchema)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	// :memory: databases cannot use WAL and silently fall back to "memory".
	if mode == "" {
		t.Error("expected a journal_mode to be reported")
	}
}

func TestOpenCreatesParentDirWithMkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "kto.db")
	db, err := Open(path, noopSchema, WithMkdirAll())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
}

func TestOpenRunsSchemaApplier(t *testing.T) {
	called := false
	apply := func(db *sql.DB) error {
		called = true
		return nil
	}
	db, err := Open(":memory:", apply)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if !called {
		t.Error("expected the schema applier to run")
	}
}

func TestOpenWithoutSchemaSkipsApplier(t *testing.T) {
	called := false
	apply := func(db *sql.DB) error {
		called = true
		return nil
	}
	db, err := Open(":memory:", apply, WithoutSchema())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if called {
		t.Error("schema applier should not run with WithoutSchema")
	}
}

func TestOpenMemoryAppliesSchemaAndRegistersCleanup(t *testing.T) {
	called := false
	apply := func(db *sql.DB) error {
		called = true
		return nil
	}
	var db *sql.DB
	t.Run("open", func(t *testing.T) {
		db = OpenMemory(t, apply)
		if err := db.Ping(); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
	if !called {
		t.Error("expected the schema applier to run")
	}
	if err := db.Ping(); err == nil {
		t.Error("expected the registered cleanup to close the database")
	}
}
