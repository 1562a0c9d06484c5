package speech

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

// Whisper implements [Transcriber] using the OpenAI audio transcription
// API (whisper-1 by default).
type Whisper struct {
	client *openai.Client
	model  openai.AudioModel
}

var _ Transcriber = (*Whisper)(nil)

// WhisperOption configures a Whisper transcriber.
type WhisperOption func(*whisperConfig)

type whisperConfig struct {
	model      openai.AudioModel
	baseURL    string
	httpClient *http.Client
}

// WithWhisperModel overrides the transcription model.
func WithWhisperModel(model string) WhisperOption {
	return func(c *whisperConfig) { c.model = openai.AudioModel(model) }
}

// WithWhisperBaseURL points the client at an OpenAI-compatible endpoint,
// e.g. a local whisper.cpp server.
func WithWhisperBaseURL(url string) WhisperOption {
	return func(c *whisperConfig) { c.baseURL = url }
}

// WithWhisperHTTPClient sets a custom HTTP client.
func WithWhisperHTTPClient(client *http.Client) WhisperOption {
	return func(c *whisperConfig) { c.httpClient = client }
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(apiKey string, opts ...WhisperOption) *Whisper {
	cfg := whisperConfig{
		model:      openai.AudioModelWhisper1,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &Whisper{client: &client, model: cfg.model}
}

// Transcribe uploads the signal as WAV and returns the transcript text.
func (w *Whisper) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrEmptyInput
	}

	var wav bytes.Buffer
	if err := pcm.WriteWAV(&wav, samples, pcm.L16Mono16K.SampleRate()); err != nil {
		return "", fmt.Errorf("speech: encode wav: %w", err)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:    w.model,
		File:     openai.File(&wav, "utterance.wav", "audio/wav"),
		Language: openai.String("en"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
