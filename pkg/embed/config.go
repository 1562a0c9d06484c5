package embed

import "net/http"

// config holds shared configuration for extractor implementations.
type config struct {
	model      string
	dim        int
	httpClient *http.Client
}

// Option configures an extractor.
type Option func(*config)

// WithModel sets the speaker model name requested from the server.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the expected output vector dimensionality.
// Responses with a different dimension are rejected.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}
