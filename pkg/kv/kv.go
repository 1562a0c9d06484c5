// Package kv provides a key-value store with hierarchical path-based keys
// and optional per-entry TTL. Keys are string slices (e.g.
// ["session", "a3f8"]) encoded with a configurable separator.
//
// Two implementations are provided: an in-memory store for tests and
// single-process deployments, and a BadgerDB-backed store whose TTL maps
// onto badger's native entry expiry.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("kv: not found")
)

// Key is a hierarchical path represented as a slice of string segments.
// Segments must not contain the configured separator character.
type Key []string

// String returns the key joined with ':' for display and debugging.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys and optional TTL.
// Implementations must be safe for concurrent use; Set and SetTTL are
// atomic per key, so a concurrent Get observes either the old or the new
// value, never a partial write.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if the key
	// is not present or its TTL has elapsed.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair without expiry. Overwrites any existing
	// value and clears any previous TTL.
	Set(ctx context.Context, key Key, value []byte) error

	// SetTTL stores a key-value pair that expires after ttl.
	// A non-positive ttl behaves like Set.
	SetTTL(ctx context.Context, key Key, value []byte, ttl time.Duration) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all live entries whose key starts with the given
	// prefix, in lexicographic order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSeparator is the separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator joins key segments in the encoded representation.
	// Default is ':' if zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++
		}
		n += len(seg)
	}
	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, o.sep())
		}
		buf = append(buf, seg...)
	}
	return buf
}

func (o *Options) decode(b []byte) Key {
	if len(b) == 0 {
		return Key{""}
	}
	parts := strings.Split(string(b), string(o.sep()))
	return Key(parts)
}
