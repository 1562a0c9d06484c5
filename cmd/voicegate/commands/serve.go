package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/challenge"
	"github.com/haivivi/voicegate/pkg/server"
	"github.com/haivivi/voicegate/pkg/speech"
	"github.com/haivivi/voicegate/pkg/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice authentication server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		engine := buildEngine(cfg, store)

		var transcriber speech.Transcriber
		if cfg.Whisper.APIKey != "" || cfg.Whisper.BaseURL != "" {
			var opts []speech.WhisperOption
			if cfg.Whisper.Model != "" {
				opts = append(opts, speech.WithWhisperModel(cfg.Whisper.Model))
			}
			if cfg.Whisper.BaseURL != "" {
				opts = append(opts, speech.WithWhisperBaseURL(cfg.Whisper.BaseURL))
			}
			transcriber = speech.NewWhisper(cfg.Whisper.APIKey, opts...)
		} else {
			log.Warn("no whisper credentials; challenge verification disabled")
			transcriber = speech.TranscribeFunc(func(context.Context, []float32) (string, error) {
				return "", speech.ErrUnavailable
			})
		}

		challenges := challenge.NewManager(engine, transcriber, newNormalizer(cfg), store,
			challenge.Config{TTL: cfg.Challenge.TTL.Std()})
		verifier := stream.NewVerifier(engine, stream.Config{Boost: cfg.Auth.Boost})

		srv := server.New(engine, challenges, verifier, store, server.Config{
			APIKey:     cfg.APIKey,
			RateLimit:  cfg.RateLimit,
			RateWindow: cfg.RateWindow.Std(),
			Logger:     log,
		})

		httpSrv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() { errc <- httpSrv.ListenAndServe() }()
		log.Info("listening", "addr", cfg.Listen, "embedding", cfg.Embedding.URL)

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
