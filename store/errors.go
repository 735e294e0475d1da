package store

import "errors"

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key (email, credential id) already exists.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrCredentialLimit is returned when inserting a credential would exceed the per-user cap.
	ErrCredentialLimit = errors.New("store: credential limit reached")
	// ErrUnavailable wraps failures of the underlying database.
	ErrUnavailable = errors.New("store: unavailable")
)
