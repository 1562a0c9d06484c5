package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/cmd/voicegate/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "voicegate",
	Short: "Voice authentication and challenge-response server",
	Long: `voicegate - speaker verification with spoken-phrase challenges.

Enrollment builds a voiceprint from several recordings of one speaker.
Authentication scores a live recording against that voiceprint. Challenge
sessions add a random phrase the speaker must say, defeating replayed
recordings.

Examples:
  # Run the server
  voicegate serve -f voicegate.yaml

  # Enroll and authenticate locally against the configured stores
  voicegate enroll alice one.wav two.wav three.wav
  voicegate authenticate alice live.wav

  # Back up all voiceprints
  voicegate export voiceprints.msgpack`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "voicegate.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the config file named by the global flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newLogger builds the process logger; -v enables debug records.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
