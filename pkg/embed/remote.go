package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
)

const (
	// ModelECAPATDNN is the default speaker model served by the model
	// server. Embeddings are 192-dimensional.
	ModelECAPATDNN = "ecapa-tdnn"

	remoteDefaultDim = 192
)

// Remote implements [Extractor] against a speaker model server.
//
// The server exposes POST {base}/v1/embeddings/speaker accepting a WAV
// body and returning JSON:
//
//	{"model": "ecapa-tdnn", "dimension": 192, "embedding": [ ... ]}
type Remote struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
}

var _ Extractor = (*Remote)(nil)

// NewRemote creates an extractor backed by the model server at baseURL.
func NewRemote(baseURL string, opts ...Option) *Remote {
	cfg := config{
		model:      ModelECAPATDNN,
		dim:        remoteDefaultDim,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Remote{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.model,
		dim:     cfg.dim,
		client:  cfg.httpClient,
	}
}

// Extract posts the signal to the model server and returns the embedding.
// Transport and server failures are wrapped in [ErrUnavailable].
func (r *Remote) Extract(ctx context.Context, samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}

	var body bytes.Buffer
	if err := pcm.WriteWAV(&body, samples, pcm.L16Mono16K.SampleRate()); err != nil {
		return nil, fmt.Errorf("embed: encode wav: %w", err)
	}

	url := fmt.Sprintf("%s/v1/embeddings/speaker?model=%s", r.baseURL, r.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: server returned %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out struct {
		Model     string    `json:"model"`
		Dimension int       `json:"dimension"`
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(out.Embedding) != r.dim {
		return nil, fmt.Errorf("%w: got %d-dim embedding, want %d", ErrUnavailable, len(out.Embedding), r.dim)
	}
	return out.Embedding, nil
}

// Dimension returns the configured vector dimensionality.
func (r *Remote) Dimension() int {
	return r.dim
}

// Model returns the speaker model identifier.
func (r *Remote) Model() string {
	return r.model
}
