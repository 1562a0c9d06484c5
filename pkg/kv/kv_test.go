package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/haivivi/voicegate/pkg/kv"
)

// newTestStore creates a Store for testing. Tests in this file use the
// Memory implementation; badger_test.go reuses the same logic against the
// badger engine.
func newTestStore(t *testing.T, opts *kv.Options) kv.Store {
	t.Helper()
	s := kv.NewMemory(opts)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	key := kv.Key{"session", "abc123"}
	val := []byte("hello")

	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, key, val); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("Get = %q, want %q", got, val)
	}

	val2 := []byte("world")
	if err := s.Set(ctx, key, val2); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != string(val2) {
		t.Fatalf("Get = %q, want %q", got, val2)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
		t.Fatalf("Delete non-existent: %v", err)
	}
}

func TestSetTTLExpires(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryAt(nil)
	t.Cleanup(func() { s.Close() })

	key := kv.Key{"session", "ttl"}
	if err := s.SetTTL(ctx, key, []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}

	// Still live before expiry.
	if _, err := s.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	s.Advance(31 * time.Second)
	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get after expiry = %v, want ErrNotFound", err)
	}
}

func TestSetClearsTTL(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryAt(nil)
	t.Cleanup(func() { s.Close() })

	key := kv.Key{"k"}
	if err := s.SetTTL(ctx, key, []byte("a"), time.Second); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	if err := s.Set(ctx, key, []byte("b")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s.Advance(time.Hour)
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "b" {
		t.Fatalf("Get = %q, want %q", got, "b")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	data := map[string][]byte{
		"vp:alice":    []byte("a"),
		"vp:bob":      []byte("b"),
		"session:one": []byte("s1"),
		"session:two": []byte("s2"),
	}
	if err := s.Set(ctx, kv.Key{"vp", "alice"}, data["vp:alice"]); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, kv.Key{"vp", "bob"}, data["vp:bob"]); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, kv.Key{"session", "one"}, data["session:one"]); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, kv.Key{"session", "two"}, data["session:two"]); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []string
	for entry, err := range s.List(ctx, kv.Key{"vp"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String()+"="+string(entry.Value))
	}
	want := []string{"vp:alice=a", "vp:bob=b"}
	if !slices.Equal(got, want) {
		t.Fatalf("List vp = %v, want %v", got, want)
	}

	// Empty prefix lists everything.
	n := 0
	for _, err := range s.List(ctx, nil) {
		if err != nil {
			t.Fatalf("List all: %v", err)
		}
		n++
	}
	if n != 4 {
		t.Fatalf("List all: got %d entries, want 4", n)
	}
}

func TestListSkipsExpired(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryAt(nil)
	t.Cleanup(func() { s.Close() })

	if err := s.Set(ctx, kv.Key{"session", "live"}, []byte("l")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.SetTTL(ctx, kv.Key{"session", "dead"}, []byte("d"), time.Second); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	s.Advance(2 * time.Second)

	var got []string
	for entry, err := range s.List(ctx, kv.Key{"session"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String())
	}
	if !slices.Equal(got, []string{"session:live"}) {
		t.Fatalf("List = %v, want [session:live]", got)
	}
}

func TestPrefixBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Set(ctx, kv.Key{"ab", "x"}, []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, kv.Key{"abc", "x"}, []byte("2")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []string
	for entry, err := range s.List(ctx, kv.Key{"ab"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String())
	}
	if !slices.Equal(got, []string{"ab:x"}) {
		t.Fatalf("List ab = %v, want [ab:x] only", got)
	}
}
