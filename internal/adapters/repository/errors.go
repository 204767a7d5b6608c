package repository

import "errors"

// Sentinel kinds for storage errors. ErrNotFound and ErrCorrupt are both
// read failures but stay distinct so callers can tell an absent store from a
// damaged one.
var (
	ErrNotFound       = errors.New("event store not found")
	ErrCorrupt        = errors.New("event store unreadable")
	ErrWrite          = errors.New("event store write failed")
	ErrUnknownBackend = errors.New("unknown store backend")
)
