package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/audio/normalize"
	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/auth"
)

// readSignal loads one WAV file as a raw signal.
func readSignal(path string) (normalize.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return normalize.Signal{}, err
	}
	defer f.Close()

	samples, rate, channels, err := pcm.ReadWAV(f)
	if err != nil {
		return normalize.Signal{}, fmt.Errorf("%s: %w", path, err)
	}
	return normalize.Signal{Samples: samples, Rate: rate, Channels: channels}, nil
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <user> <wav>...",
	Short: "Enroll a user from WAV recordings",
	Long: fmt.Sprintf(`Enroll builds a voiceprint for a user from recorded utterances.

At least %d recordings are required; each must be a PCM16 WAV file of
one utterance by the same speaker. An existing enrollment for the user
is overwritten.`, auth.MinEnrollmentSamples),
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		userID := args[0]
		samples := make([]normalize.Signal, 0, len(args)-1)
		for _, path := range args[1:] {
			sig, err := readSignal(path)
			if err != nil {
				return err
			}
			samples = append(samples, sig)
		}

		vp, err := buildEngine(cfg, store).Enroll(cmd.Context(), userID, samples)
		if err != nil {
			return err
		}
		fmt.Printf("enrolled %s: %d samples, %d-dim voiceprint\n",
			vp.UserID, vp.SampleCount, len(vp.Embedding))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}
