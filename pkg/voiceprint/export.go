package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/voicegate/pkg/storage"
)

// Export writes all enrolled voiceprints to a FileStore path as a msgpack
// stream, one record per voiceprint. Used for backup and migration
// between deployments.
func Export(ctx context.Context, s *Store, fs storage.FileStore, path string) (int, error) {
	prints, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	w, err := fs.Write(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("voiceprint: export open %s: %w", path, err)
	}

	enc := msgpack.NewEncoder(w)
	for _, vp := range prints {
		if err := enc.Encode(vp); err != nil {
			w.Close()
			return 0, fmt.Errorf("voiceprint: export %s: %w", vp.UserID, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("voiceprint: export close: %w", err)
	}
	return len(prints), nil
}

// Import reads a msgpack voiceprint stream written by Export and writes
// every record into the store, overwriting existing enrollments for the
// same user IDs. Returns the number of imported voiceprints.
func Import(ctx context.Context, s *Store, fs storage.FileStore, path string) (int, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("voiceprint: import open %s: %w", path, err)
	}
	defer r.Close()

	dec := msgpack.NewDecoder(r)
	n := 0
	for {
		var vp Voiceprint
		if err := dec.Decode(&vp); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("voiceprint: import decode: %w", err)
		}
		if err := s.Put(ctx, &vp); err != nil {
			return n, err
		}
		n++
	}
}
