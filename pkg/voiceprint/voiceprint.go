// Package voiceprint owns the enrolled biometric templates: one centroid
// embedding per user, persisted through a kv.Store.
//
// A voiceprint exists for a user if and only if enrollment has completed
// successfully at least once. Re-enrollment overwrites; there is no merge.
package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/voicegate/pkg/kv"
)

// ErrNotFound is returned when no voiceprint exists for a user. Callers
// must keep this distinct from an authentication reject.
var ErrNotFound = errors.New("voiceprint: not found")

// keyPrefix is the kv namespace for voiceprint records.
const keyPrefix = "vp"

// Voiceprint is the stored template for one enrolled user.
type Voiceprint struct {
	UserID      string    `msgpack:"user_id"`
	Embedding   []float32 `msgpack:"embedding"`
	SampleCount int       `msgpack:"sample_count"`
	CreatedAt   time.Time `msgpack:"created_at"`
	UpdatedAt   time.Time `msgpack:"updated_at"`
}

// Store persists voiceprints in a kv.Store. Writes for the same user are
// mutually exclusive via striped locks; reads are concurrent and never
// observe a partially written voiceprint (kv.Set is atomic per key).
type Store struct {
	store kv.Store
	locks [64]sync.Mutex
}

// NewStore creates a voiceprint store on top of the given kv.Store.
func NewStore(store kv.Store) *Store {
	return &Store{store: store}
}

func (s *Store) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// Get returns the voiceprint for userID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*Voiceprint, error) {
	raw, err := s.store.Get(ctx, kv.Key{keyPrefix, userID})
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("voiceprint: get %s: %w", userID, err)
	}
	var vp Voiceprint
	if err := msgpack.Unmarshal(raw, &vp); err != nil {
		return nil, fmt.Errorf("voiceprint: decode %s: %w", userID, err)
	}
	return &vp, nil
}

// Put writes vp, overwriting any prior voiceprint for the same user.
// CreatedAt is preserved from an existing record; UpdatedAt is set to now.
func (s *Store) Put(ctx context.Context, vp *Voiceprint) error {
	if vp.UserID == "" {
		return errors.New("voiceprint: empty user id")
	}
	mu := s.lockFor(vp.UserID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	stored := *vp
	stored.UpdatedAt = now
	stored.CreatedAt = now
	if prev, err := s.Get(ctx, vp.UserID); err == nil {
		stored.CreatedAt = prev.CreatedAt
	}

	raw, err := msgpack.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("voiceprint: encode %s: %w", vp.UserID, err)
	}
	if err := s.store.Set(ctx, kv.Key{keyPrefix, vp.UserID}, raw); err != nil {
		return fmt.Errorf("voiceprint: put %s: %w", vp.UserID, err)
	}
	*vp = stored
	return nil
}

// Delete removes a user's voiceprint. Administrative action; no error if
// absent.
func (s *Store) Delete(ctx context.Context, userID string) error {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()
	return s.store.Delete(ctx, kv.Key{keyPrefix, userID})
}

// Exists reports whether a voiceprint exists for userID.
func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all enrolled voiceprints ordered by user ID.
func (s *Store) List(ctx context.Context) ([]*Voiceprint, error) {
	var out []*Voiceprint
	for entry, err := range s.store.List(ctx, kv.Key{keyPrefix}) {
		if err != nil {
			return nil, fmt.Errorf("voiceprint: list: %w", err)
		}
		var vp Voiceprint
		if err := msgpack.Unmarshal(entry.Value, &vp); err != nil {
			return nil, fmt.Errorf("voiceprint: decode %s: %w", entry.Key, err)
		}
		out = append(out, &vp)
	}
	return out, nil
}

// Cosine returns the raw cosine similarity between two vectors: dot
// product over the product of norms, range [-1, 1]. No re-centering, no
// population normalization. The epsilon guards zero-norm inputs.
func Cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return float32(dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8))
}

// Centroid returns the arithmetic mean of the given embedding vectors.
// The inputs are averaged raw (not unit-normalized) so magnitude
// information correlated with recording consistency is preserved, matching
// the raw cosine scoring policy.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float32, dim)
	for _, v := range vectors {
		for i := range min(dim, len(v)) {
			out[i] += v[i]
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}
