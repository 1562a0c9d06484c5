package commands

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/voicegate/cmd/voicegate/internal/config"
	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/auth"
	"github.com/haivivi/voicegate/pkg/embed"
	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/storage"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// openStore opens the kv backend: badger when a directory is configured,
// otherwise in-memory.
func openStore(cfg *config.Config) (kv.Store, error) {
	if cfg.Store.Dir == "" {
		return kv.NewMemory(nil), nil
	}
	return kv.NewBadger(kv.BadgerOptions{Dir: cfg.Store.Dir})
}

func newNormalizer(cfg *config.Config) *normalize.Normalizer {
	return normalize.New(normalize.Config{
		Boost:       cfg.Auth.Boost,
		MinDuration: cfg.Auth.MinDuration.Std(),
		MaxDuration: cfg.Auth.MaxDuration.Std(),
	})
}

func newExtractor(cfg *config.Config) *embed.Remote {
	var opts []embed.Option
	if cfg.Embedding.Model != "" {
		opts = append(opts, embed.WithModel(cfg.Embedding.Model))
	}
	if cfg.Embedding.Dimension != 0 {
		opts = append(opts, embed.WithDimension(cfg.Embedding.Dimension))
	}
	return embed.NewRemote(cfg.Embedding.URL, opts...)
}

func buildEngine(cfg *config.Config, store kv.Store) *auth.Engine {
	return auth.NewEngine(
		newNormalizer(cfg),
		newExtractor(cfg),
		voiceprint.NewStore(store),
		auth.Config{Threshold: cfg.Auth.Threshold},
	)
}

// backupStore builds the FileStore for export/import: S3 when a bucket is
// configured, local disk otherwise.
func backupStore(cfg *config.Config) (storage.FileStore, error) {
	c := cfg.Backup.S3
	if c.Bucket == "" {
		return storage.NewLocal(cfg.Backup.Dir)
	}

	opts := s3.Options{Region: c.Region}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
		opts.UsePathStyle = true
	}
	if c.AccessKey != "" {
		creds := aws.Credentials{AccessKeyID: c.AccessKey, SecretAccessKey: c.SecretKey}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return storage.NewS3(s3.New(opts), c.Bucket, c.Prefix), nil
}
