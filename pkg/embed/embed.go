// Package embed provides the speaker embedding contract and a remote
// model-server implementation.
//
// An Extractor converts a normalized audio signal (mono, 16 kHz float32
// samples) into a fixed-dimension speaker embedding vector. The model
// itself is an external capability: deterministic enough that the same
// utterance lands within noise tolerance of itself, and always returning
// vectors of one known dimension.
//
// # Quick Start
//
//	e := embed.NewRemote("http://models:8500", embed.WithDimension(192))
//	vec, err := e.Extract(ctx, signal)
package embed

import (
	"context"
	"errors"
)

// Extractor converts a normalized audio signal into a speaker embedding.
type Extractor interface {
	// Extract returns the speaker embedding for samples, which must be
	// mono 16 kHz float32 audio. The returned vector has length
	// Dimension().
	Extract(ctx context.Context, samples []float32) ([]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input signal is empty.
	ErrEmptyInput = errors.New("embed: empty input")

	// ErrUnavailable is returned when the embedding model cannot serve
	// the request (transport failure, malformed output). Callers surface
	// it as a service error; there is no internal retry.
	ErrUnavailable = errors.New("embed: model unavailable")
)
