// Package speech provides the transcription contract used by the
// challenge-response protocol, with an OpenAI Whisper implementation.
//
// The engine only needs one capability: turn a short normalized utterance
// into text so the spoken phrase can be compared against the issued
// challenge. Accuracy requirements are mild; the phrase matcher tolerates
// common transcription errors.
package speech

import (
	"context"
	"errors"
)

// Transcriber converts a normalized audio signal into text.
type Transcriber interface {
	// Transcribe returns the transcript of samples, which must be mono
	// 16 kHz float32 audio.
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// TranscribeFunc is an adapter to allow ordinary functions as Transcribers.
type TranscribeFunc func(ctx context.Context, samples []float32) (string, error)

// Transcribe calls the underlying function.
func (f TranscribeFunc) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return f(ctx, samples)
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input signal is empty.
	ErrEmptyInput = errors.New("speech: empty input")

	// ErrUnavailable is returned when the transcription service cannot
	// serve the request. Not retried internally.
	ErrUnavailable = errors.New("speech: transcriber unavailable")
)
