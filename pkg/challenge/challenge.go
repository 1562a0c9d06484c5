// Package challenge implements the spoken-phrase challenge-response
// protocol, the anti-replay core of the system.
//
// A session issues one random phrase with a short TTL. Exactly one verify
// attempt may run against it; both success and failure consume the
// session, so a recorded utterance cannot be replayed (the next session
// has a different phrase) and a single phrase cannot be brute-forced.
// Acceptance requires BOTH a voice-identity match and a phrase match.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/auth"
	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/speech"
)

// DefaultTTL bounds the replay window; a challenge not answered within
// this span must be restarted with a fresh phrase.
const DefaultTTL = 30 * time.Second

// Session protocol errors. All three terminate the session: once any of
// them is returned for an existing session, that session is consumed.
var (
	ErrSessionNotFound    = errors.New("challenge: session not found")
	ErrSessionExpired     = errors.New("challenge: session expired")
	ErrSessionAlreadyUsed = errors.New("challenge: session already used")
)

// keyPrefix is the kv namespace for challenge sessions.
const keyPrefix = "session"

// Session is one issued challenge. Phrase is immutable once issued.
type Session struct {
	ID        string    `msgpack:"id"`
	UserID    string    `msgpack:"user_id"`
	Phrase    string    `msgpack:"phrase"`
	CreatedAt time.Time `msgpack:"created_at"`
	ExpiresAt time.Time `msgpack:"expires_at"`
	Consumed  bool      `msgpack:"consumed"`
}

// Result is the outcome of a verify attempt on a live session.
// Accept is true only when both sub-checks pass.
type Result struct {
	Accept      bool
	VoiceScore  float32
	PhraseMatch bool
	Transcript  string
}

// Config tunes the Manager. Zero fields use defaults.
type Config struct {
	// TTL is the session lifetime.
	TTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager owns challenge sessions. Sessions live in a kv.Store under the
// "session" prefix; per-session striped locks make the consumed
// check-and-set linearizable within this process. Deployments sharing one
// store across processes need a backend with atomic conditional writes.
type Manager struct {
	engine      *auth.Engine
	transcriber speech.Transcriber
	normalizer  *normalize.Normalizer
	store       kv.Store
	ttl         time.Duration
	now         func() time.Time

	locks [64]sync.Mutex
}

// NewManager creates a Manager from its capabilities.
func NewManager(engine *auth.Engine, tr speech.Transcriber, n *normalize.Normalizer, store kv.Store, cfg Config) *Manager {
	m := &Manager{
		engine:      engine,
		transcriber: tr,
		normalizer:  n,
		store:       store,
		ttl:         cfg.TTL,
		now:         cfg.Now,
	}
	if m.ttl == 0 {
		m.ttl = DefaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &m.locks[h.Sum32()%uint32(len(m.locks))]
}

// Start issues a new challenge for userID. The user must already be
// enrolled; otherwise auth.ErrUnknownUser is returned.
func (m *Manager) Start(ctx context.Context, userID string) (*Session, error) {
	ok, err := m.engine.Prints().Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auth.ErrUnknownUser
	}

	now := m.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Phrase:    randomPhrase(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Verify runs one attempt against sessionID. The session is consumed
// before any model call: whatever the outcome, even a collaborator crash
// mid-inference, no second attempt can run.
//
// Acceptance requires both the voice-identity check and the phrase check;
// either alone is insufficient.
func (m *Manager) Verify(ctx context.Context, sessionID string, sample normalize.Signal) (*Result, error) {
	s, err := m.consume(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Validate audio after the session is burned: a failed recording
	// costs the caller the challenge, same as a failed match. Anything
	// softer would allow probing one phrase repeatedly with junk audio.
	ns, err := m.normalizer.Normalize(sample)
	if err != nil {
		return nil, err
	}

	decision, err := m.engine.ScoreUser(ctx, s.UserID, ns.Samples)
	if err != nil {
		return nil, err
	}

	transcript, err := m.transcriber.Transcribe(ctx, ns.Samples)
	if err != nil {
		return nil, fmt.Errorf("challenge: transcribe: %w", err)
	}
	phraseOK, _ := matchPhrase(transcript, s.Phrase)

	return &Result{
		Accept:      decision.Accept && phraseOK,
		VoiceScore:  decision.Score,
		PhraseMatch: phraseOK,
		Transcript:  transcript,
	}, nil
}

// consume atomically transitions the session out of its single live
// state. Exactly one caller observes Consumed == false; all others get
// ErrSessionAlreadyUsed (or ErrSessionExpired past the deadline).
func (m *Manager) consume(ctx context.Context, sessionID string) (*Session, error) {
	mu := m.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.get(ctx, sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.Consumed {
		return nil, ErrSessionAlreadyUsed
	}

	s.Consumed = true
	if putErr := m.put(ctx, s); putErr != nil {
		return nil, putErr
	}

	if m.now().After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return s, nil
}

func (m *Manager) get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := m.store.Get(ctx, kv.Key{keyPrefix, sessionID})
	if err != nil {
		return nil, err
	}
	var s Session
	if err := msgpack.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("challenge: decode session %s: %w", sessionID, err)
	}
	return &s, nil
}

func (m *Manager) put(ctx context.Context, s *Session) error {
	raw, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("challenge: encode session %s: %w", s.ID, err)
	}
	// Keep the record around past logical expiry so a late verify gets
	// ErrSessionExpired instead of ErrSessionNotFound; the store reaps it
	// after twice the TTL.
	if err := m.store.SetTTL(ctx, kv.Key{keyPrefix, s.ID}, raw, 2*m.ttl); err != nil {
		return fmt.Errorf("challenge: store session %s: %w", s.ID, err)
	}
	return nil
}
