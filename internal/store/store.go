// Package store implements the embedded relational store for watches,
// snapshots, changes, and agent memory.
package store

import "database/sql"

// Store wraps a database handle with the kto schema applied.
type Store struct {
	DB *sql.DB
}

// NewStore wraps an already-opened, already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
