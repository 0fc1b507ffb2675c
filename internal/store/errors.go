package store

import "errors"

// ErrNotFound is returned when a lookup by ID or name matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateName is returned when inserting a watch whose name already
// exists (names are globally unique, case-sensitive).
var ErrDuplicateName = errors.New("store: watch name already exists")
