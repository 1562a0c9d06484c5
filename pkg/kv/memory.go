package kv

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Store with lazy TTL expiry. It is safe for
// concurrent use and suited to tests and single-process deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memEntry
	opts *Options

	// now is swappable in tests to exercise expiry without sleeping.
	now func() time.Time

	clockMu sync.Mutex
	manual  time.Time // zero when using the real clock
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemory creates a new in-memory Store. Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		data: make(map[string]memEntry),
		opts: opts,
		now:  time.Now,
	}
}

// NewMemoryAt creates an in-memory Store with a manual clock so tests can
// exercise TTL expiry without sleeping. Move time forward with Advance.
func NewMemoryAt(opts *Options) *Memory {
	m := &Memory{
		data:   make(map[string]memEntry),
		opts:   opts,
		manual: time.Now(),
	}
	m.now = func() time.Time {
		m.clockMu.Lock()
		defer m.clockMu.Unlock()
		return m.manual
	}
	return m
}

// Advance moves the manual clock forward. It has no effect on stores
// created with NewMemory.
func (m *Memory) Advance(d time.Duration) {
	m.clockMu.Lock()
	defer m.clockMu.Unlock()
	if !m.manual.IsZero() {
		m.manual = m.manual.Add(d)
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	e, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired(m.now()) {
		// Lazy cleanup; re-check under write lock in case of overwrite.
		m.mu.Lock()
		if cur, ok := m.data[k]; ok && cur.expired(m.now()) {
			delete(m.data, k)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

func (m *Memory) Set(ctx context.Context, key Key, value []byte) error {
	return m.SetTTL(ctx, key, value, 0)
}

func (m *Memory) SetTTL(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	k := string(m.opts.encode(key))
	cp := make([]byte, len(value))
	copy(cp, value)
	e := memEntry{value: cp}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[k] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.opts.encode(prefix)
	// Append separator so prefix "a:b" does not match key "a:bc".
	var prefixBytes []byte
	if len(p) > 0 {
		prefixBytes = append(p, m.opts.sep())
	}

	now := m.now()
	m.mu.RLock()
	type pair struct {
		key string
		val []byte
	}
	var matches []pair
	for k, e := range m.data {
		if e.expired(now) {
			continue
		}
		if len(prefixBytes) == 0 || bytes.HasPrefix([]byte(k), prefixBytes) {
			cp := make([]byte, len(e.value))
			copy(cp, e.value)
			matches = append(matches, pair{k, cp})
		}
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].key < matches[j].key
	})

	return func(yield func(Entry, error) bool) {
		for _, p := range matches {
			entry := Entry{
				Key:   m.opts.decode([]byte(p.key)),
				Value: p.val,
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
