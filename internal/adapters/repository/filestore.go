package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okian/mimic/internal/domain/model"
)

const defaultFileMode os.FileMode = 0o600

// FileStore keeps the whole sequence in one blob file. Every write goes to a
// temporary file in the same directory which is synced and then renamed over
// the store, so a crash leaves either the old or the new blob, never a torn
// one.
type FileStore struct {
	path string
	perm os.FileMode
}

// NewFileStore returns a store backed by the file at path. Nothing is
// touched on disk until the first Reset or Append.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path: path,
		perm: defaultFileMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the blob location.
func (s *FileStore) Path() string { return s.path }

// Reset implements Store.
func (s *FileStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return s.replace(Encode(nil))
}

// Append implements Store. The file backend merges by rewriting the blob
// with the old events followed by the batch.
func (s *FileStore) Append(ctx context.Context, batch model.Batch) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	existing, err := s.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = nil
	case err != nil:
		return 0, fmt.Errorf("%w: read before merge: %w", ErrWrite, err)
	}

	merged := make([]model.Event, 0, len(existing)+len(batch.Events))
	merged = append(merged, existing...)
	merged = append(merged, batch.Events...)

	if err := s.replace(Encode(merged)); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return Decode(data)
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) replace(data []byte) (err error) {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: write temp: %w", ErrWrite, err)
	}
	if err = tmp.Chmod(s.perm); err != nil {
		return fmt.Errorf("%w: chmod temp: %w", ErrWrite, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp: %w", ErrWrite, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %w", ErrWrite, err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrWrite, err)
	}

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
