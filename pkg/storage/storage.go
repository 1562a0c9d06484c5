// Package storage defines the FileStore interface used for voiceprint
// backup archives. It abstracts the blob backend so exports can land on
// local disk in development and on S3-compatible object stores in
// production without changing caller code.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for blob storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named blob for reading. The caller must close the
	// returned ReadCloser. If the blob does not exist, an error wrapping
	// os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named blob for writing, truncating any existing
	// content. The caller must close the returned WriteCloser to flush.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named blob. Idempotent: deleting a missing blob
	// returns nil.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, path string) (bool, error)
}
