package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
)

func TestLocalRoundtrip(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	w, err := l.Write(ctx, "backups/prints.msgpack")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ok, err := l.Exists(ctx, "backups/prints.msgpack")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}

	r, err := l.Read(ctx, "backups/prints.msgpack")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Read = %q, want %q", got, "payload")
	}

	if err := l.Delete(ctx, "backups/prints.msgpack"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = l.Exists(ctx, "backups/prints.msgpack")
	if err != nil || ok {
		t.Fatalf("Exists after delete = %v, %v; want false, nil", ok, err)
	}

	// Idempotent delete.
	if err := l.Delete(ctx, "backups/prints.msgpack"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
}

func TestLocalReadMissing(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	_, err = l.Read(context.Background(), "nope")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read missing = %v, want os.ErrNotExist", err)
	}
}
