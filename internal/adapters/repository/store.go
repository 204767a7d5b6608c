// Package repository holds the durable event store and its encoding.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/mimic/internal/domain/model"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Store is the durable, ordered event sequence.
type Store interface {
	// Reset discards any previous content and leaves an empty sequence.
	Reset(ctx context.Context) error

	// Append adds the batch after the existing events, atomically with respect
	// to crashes, and returns the number of events now stored.
	// Failures wrap ErrWrite.
	Append(ctx context.Context, batch model.Batch) (int, error)

	// Load returns the full sequence in stored order. It fails with
	// ErrNotFound when the store does not exist and ErrCorrupt when it
	// cannot be read or decoded. A ctx that is already done yields ctx.Err()
	// unwrapped, since the store content is unknown then.
	Load(ctx context.Context) ([]model.Event, error)

	// Close releases any held resources.
	Close() error
}

// Open builds the store for backend at path.
func Open(ctx context.Context, backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path, opts...), nil
	case BackendSQLite:
		return OpenSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
