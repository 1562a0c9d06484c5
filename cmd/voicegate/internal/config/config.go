// Package config loads the voicegate service configuration from YAML.
//
// Minimal example:
//
//	listen: ":8080"
//	store:
//	  dir: /var/lib/voicegate
//	embedding:
//	  url: http://localhost:8000
//	whisper:
//	  api_key: sk-...
//
// Secrets may be left out of the file: WhisperAPIKey falls back to the
// OPENAI_API_KEY environment variable, the server API key to
// VOICEGATE_API_KEY.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(b []byte) error {
	var s string
	if err := yaml.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	// Listen is the HTTP listen address, default ":8080".
	Listen string `yaml:"listen"`

	// APIKey protects all routes except /healthz when set.
	APIKey string `yaml:"api_key"`

	// RateLimit is requests per client IP per RateWindow; 0 disables.
	RateLimit  int      `yaml:"rate_limit"`
	RateWindow Duration `yaml:"rate_window"`

	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Whisper   WhisperConfig   `yaml:"whisper"`
	Auth      AuthConfig      `yaml:"auth"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Backup    BackupConfig    `yaml:"backup"`
}

// StoreConfig selects the kv backend. An empty Dir runs in memory, which
// loses enrollments on restart.
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// EmbeddingConfig points at the speaker model server.
type EmbeddingConfig struct {
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// WhisperConfig configures phrase transcription.
type WhisperConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// AuthConfig tunes scoring and normalization.
type AuthConfig struct {
	Threshold   float32  `yaml:"threshold"`
	Boost       float64  `yaml:"boost"`
	MinDuration Duration `yaml:"min_duration"`
	MaxDuration Duration `yaml:"max_duration"`
}

// ChallengeConfig tunes the challenge session manager.
type ChallengeConfig struct {
	TTL Duration `yaml:"ttl"`
}

// BackupConfig selects the FileStore used by export/import. S3 wins when a
// bucket is set; otherwise Dir (default ".") on the local filesystem.
type BackupConfig struct {
	Dir string   `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
}

// S3Config configures an S3-compatible object store. Endpoint may point at
// MinIO or R2; empty credentials fall back to the SDK's anonymous provider.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Load reads and parses the configuration file at path, applying defaults
// and environment fallbacks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("VOICEGATE_API_KEY")
	}
	if c.Whisper.APIKey == "" {
		c.Whisper.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "."
	}
}
