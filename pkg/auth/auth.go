// Package auth implements enrollment and voice authentication decisions.
//
// Enrollment aggregates several utterances from one speaker into a single
// centroid voiceprint. Authentication scores a live utterance against the
// stored voiceprint with raw cosine similarity and a single global
// threshold.
//
// The similarity metric and threshold are policy, not law: raw
// (non population-normalized) cosine with a fixed threshold was tuned
// empirically and is sensitive to recording-level magnitude differences,
// which the normalizer's gain and peak stages mitigate. Both knobs are
// configurable.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/embed"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// MinEnrollmentSamples is the policy minimum number of utterances required
// to enroll; averaging fewer does not smooth out single-sample noise.
const MinEnrollmentSamples = 3

// DefaultThreshold is the accept threshold for raw cosine scores.
// ECAPA-style embeddings typically score same-speaker pairs at 0.25–0.70
// and different-speaker pairs at -0.10–0.25.
const DefaultThreshold = 0.40

// ErrUnknownUser is returned when no voiceprint exists for the claimed
// user. This is not a reject: callers must keep "no enrollment" and
// "imposter" distinguishable.
var ErrUnknownUser = errors.New("auth: unknown user")

// EnrollmentError reports a rejected enrollment. SampleIndex is the
// zero-based index of the failing sample, or -1 when the sample set as a
// whole is insufficient.
type EnrollmentError struct {
	SampleIndex int
	Err         error
}

func (e *EnrollmentError) Error() string {
	if e.SampleIndex < 0 {
		return fmt.Sprintf("auth: enrollment rejected: %v", e.Err)
	}
	return fmt.Sprintf("auth: enrollment rejected: sample %d: %v", e.SampleIndex, e.Err)
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

// Decision is the outcome of one authentication comparison. Score is the
// raw cosine similarity in [-1, 1]; it is not persisted.
type Decision struct {
	Accept bool
	Score  float32
}

// Config tunes the engine. Zero fields use defaults.
type Config struct {
	// Threshold is the minimum raw cosine score for an accept.
	Threshold float32
}

// Engine renders enrollment and authentication decisions. All external
// capabilities are injected; the engine holds no ambient global state and
// is safe for concurrent use by independent callers.
type Engine struct {
	normalizer *normalize.Normalizer
	extractor  embed.Extractor
	prints     *voiceprint.Store
	threshold  float32
}

// NewEngine creates an Engine from its capabilities.
func NewEngine(n *normalize.Normalizer, x embed.Extractor, prints *voiceprint.Store, cfg Config) *Engine {
	th := cfg.Threshold
	if th == 0 {
		th = DefaultThreshold
	}
	return &Engine{
		normalizer: n,
		extractor:  x,
		prints:     prints,
		threshold:  th,
	}
}

// Threshold returns the configured accept threshold.
func (e *Engine) Threshold() float32 { return e.threshold }

// Prints exposes the underlying voiceprint store.
func (e *Engine) Prints() *voiceprint.Store { return e.prints }

// Enroll aggregates samples into a voiceprint for userID, overwriting any
// prior enrollment. All samples are validated and normalized before the
// first embedding call; if any sample is invalid the enrollment fails with
// *EnrollmentError naming its index and nothing is written.
func (e *Engine) Enroll(ctx context.Context, userID string, samples []normalize.Signal) (*voiceprint.Voiceprint, error) {
	if userID == "" {
		return nil, errors.New("auth: empty user id")
	}
	if len(samples) < MinEnrollmentSamples {
		return nil, &EnrollmentError{
			SampleIndex: -1,
			Err:         fmt.Errorf("need at least %d samples, got %d", MinEnrollmentSamples, len(samples)),
		}
	}

	normed := make([]normalize.Signal, len(samples))
	for i, s := range samples {
		ns, err := e.normalizer.Normalize(s)
		if err != nil {
			return nil, &EnrollmentError{SampleIndex: i, Err: err}
		}
		normed[i] = ns
	}

	vectors := make([][]float32, len(normed))
	for i, ns := range normed {
		vec, err := e.extractor.Extract(ctx, ns.Samples)
		if err != nil {
			return nil, fmt.Errorf("auth: embed sample %d: %w", i, err)
		}
		vectors[i] = vec
	}

	vp := &voiceprint.Voiceprint{
		UserID:      userID,
		Embedding:   voiceprint.Centroid(vectors),
		SampleCount: len(vectors),
	}
	if err := e.prints.Put(ctx, vp); err != nil {
		return nil, err
	}
	return vp, nil
}

// Authenticate scores sample against userID's voiceprint. A missing
// voiceprint yields ErrUnknownUser; invalid audio yields
// *normalize.InvalidAudioError. Neither is downgraded to a reject.
func (e *Engine) Authenticate(ctx context.Context, userID string, sample normalize.Signal) (Decision, error) {
	ns, err := e.normalizer.Normalize(sample)
	if err != nil {
		return Decision{}, err
	}

	return e.ScoreUser(ctx, userID, ns.Samples)
}

// ScoreUser scores an already-normalized signal (mono 16 kHz) against
// userID's voiceprint. Callers that normalize once and feed both the
// scorer and the transcriber use this instead of Authenticate.
func (e *Engine) ScoreUser(ctx context.Context, userID string, samples []float32) (Decision, error) {
	// Resolve the voiceprint before paying for inference.
	vp, err := e.prints.Get(ctx, userID)
	if errors.Is(err, voiceprint.ErrNotFound) {
		return Decision{}, ErrUnknownUser
	}
	if err != nil {
		return Decision{}, err
	}

	vec, err := e.extractor.Extract(ctx, samples)
	if err != nil {
		return Decision{}, fmt.Errorf("auth: embed: %w", err)
	}

	return e.Score(vec, vp.Embedding), nil
}

// Score renders a decision for a live embedding against a stored one.
func (e *Engine) Score(live, stored []float32) Decision {
	score := voiceprint.Cosine(live, stored)
	return Decision{Accept: score >= e.threshold, Score: score}
}
