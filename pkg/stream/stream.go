// Package stream applies the authentication scorer continuously over live
// audio. An energy-gated buffer accumulates speech; each time a complete
// utterance is captured (speech followed by sustained silence, or the max
// speech length), it is normalized, embedded, and scored against the
// connection's voiceprint, and the buffer resets for the next utterance.
//
// Streaming mode is pure identity scoring: no challenge phrase is checked
// unless the caller composes this with the challenge manager.
package stream

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/auth"
)

// ErrClosed is returned by Process after Close.
var ErrClosed = errors.New("stream: session closed")

// Voice activity defaults, tuned for consumer microphones at 16 kHz.
const (
	// DefaultVADThreshold is the RMS energy above which a chunk counts
	// as speech.
	DefaultVADThreshold = 0.002

	// DefaultSilenceHold is how much continuous silence ends an
	// utterance.
	DefaultSilenceHold = 400 * time.Millisecond

	// DefaultMinSpeech drops segments too short to score reliably
	// (noise pops, coughs).
	DefaultMinSpeech = 300 * time.Millisecond

	// DefaultMaxSpeech force-emits a segment even without a pause.
	DefaultMaxSpeech = 4 * time.Second
)

// Config tunes the verifier. Zero fields use defaults.
type Config struct {
	VADThreshold float64
	SilenceHold  time.Duration
	MinSpeech    time.Duration
	MaxSpeech    time.Duration

	// Boost is the normalizer gain applied to emitted segments.
	Boost float64
}

// Event is one decision emitted for a captured utterance.
type Event struct {
	auth.Decision

	// Duration is the length of the scored utterance.
	Duration time.Duration
}

// Verifier creates streaming sessions bound to one engine.
type Verifier struct {
	engine     *auth.Engine
	normalizer *normalize.Normalizer
	cfg        Config
}

// NewVerifier creates a Verifier. The internal normalizer accepts the
// segment lengths the VAD can emit, which are shorter than the
// single-utterance window used for enrollment and challenges.
func NewVerifier(engine *auth.Engine, cfg Config) *Verifier {
	if cfg.VADThreshold == 0 {
		cfg.VADThreshold = DefaultVADThreshold
	}
	if cfg.SilenceHold == 0 {
		cfg.SilenceHold = DefaultSilenceHold
	}
	if cfg.MinSpeech == 0 {
		cfg.MinSpeech = DefaultMinSpeech
	}
	if cfg.MaxSpeech == 0 {
		cfg.MaxSpeech = DefaultMaxSpeech
	}
	return &Verifier{
		engine: engine,
		normalizer: normalize.New(normalize.Config{
			Boost:       cfg.Boost,
			MinDuration: cfg.MinSpeech,
			MaxDuration: cfg.MaxSpeech + time.Second,
		}),
		cfg: cfg,
	}
}

// Session is the per-connection state: one user, one speech buffer.
// Not restartable; a new connection gets a new session. Safe for
// concurrent use, though chunks are expected from a single reader.
type Session struct {
	v      *Verifier
	userID string

	mu       sync.Mutex
	closed   bool
	speaking bool
	speech   []float32 // accumulated utterance, trailing silence included
	silence  int       // trailing silence length in samples
}

// NewSession starts a fresh buffer for one connection tagged to userID.
func (v *Verifier) NewSession(userID string) *Session {
	return &Session{v: v, userID: userID}
}

// Process consumes one chunk of mono 16 kHz samples. It returns a non-nil
// Event each time a complete utterance has been captured and scored, and
// (nil, nil) while audio is still accumulating. The in-flight embedding
// call is not cancelable; closing the session mid-call discards its
// result.
func (s *Session) Process(ctx context.Context, chunk []float32) (*Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	segment := s.feed(chunk)
	s.mu.Unlock()

	if segment == nil {
		return nil, nil
	}

	sig := normalize.Signal{Samples: segment, Rate: normalize.TargetRate, Channels: 1}
	duration := sig.Duration()

	ns, err := s.v.normalizer.Normalize(sig)
	if err != nil {
		// VAD can pass a segment the normalizer still rejects (e.g.
		// borderline energy). Drop it and keep listening.
		var invalid *normalize.InvalidAudioError
		if errors.As(err, &invalid) {
			return nil, nil
		}
		return nil, err
	}

	decision, err := s.v.engine.ScoreUser(ctx, s.userID, ns.Samples)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		// Connection ended while the embedding call was in flight.
		return nil, ErrClosed
	}
	return &Event{Decision: decision, Duration: duration}, nil
}

// feed runs the VAD accumulator and returns a completed utterance, or nil.
// Caller holds s.mu.
func (s *Session) feed(chunk []float32) []float32 {
	fmt16k := pcm.L16Mono16K
	silenceHold := int(fmt16k.SamplesInDuration(s.v.cfg.SilenceHold))
	minSpeech := int(fmt16k.SamplesInDuration(s.v.cfg.MinSpeech))
	maxSpeech := int(fmt16k.SamplesInDuration(s.v.cfg.MaxSpeech))

	if rms(chunk) > s.v.cfg.VADThreshold {
		if !s.speaking {
			s.speaking = true
			s.speech = s.speech[:0]
		}
		s.speech = append(s.speech, chunk...)
		s.silence = 0
		if len(s.speech) >= maxSpeech {
			return s.take(len(s.speech))
		}
		return nil
	}

	if !s.speaking {
		return nil
	}
	s.speech = append(s.speech, chunk...)
	s.silence += len(chunk)
	if s.silence < silenceHold {
		return nil
	}

	// Utterance ended: trim the trailing silence and emit if long enough.
	n := len(s.speech) - s.silence
	if n < minSpeech {
		s.reset()
		return nil
	}
	return s.take(n)
}

// take copies the first n buffered samples out and resets the buffer.
// Caller holds s.mu.
func (s *Session) take(n int) []float32 {
	out := make([]float32, n)
	copy(out, s.speech[:n])
	s.reset()
	return out
}

// reset clears the accumulator state. Caller holds s.mu.
func (s *Session) reset() {
	s.speaking = false
	s.speech = s.speech[:0]
	s.silence = 0
}

// Close ends the session: the buffer is released and no further events
// are emitted.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.speech = nil
}

// rms returns the root-mean-square energy of the chunk.
func rms(chunk []float32) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, v := range chunk {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(chunk)))
}
