package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/voiceprint"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export all voiceprints to a backup file",
	Long: `Export writes every enrolled voiceprint to the configured backup
store (local directory, or S3 when a bucket is configured) as a single
msgpack stream.`,
	Args: cobra.ExactArgs(1),
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

		fs, err := backupStore(cfg)
		if err != nil {
			return err
		}

		n, err := voiceprint.Export(cmd.Context(), voiceprint.NewStore(store), fs, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("exported %d voiceprints to %s\n", n, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import voiceprints from a backup file",
	Long: `Import reads a backup written by export and enrolls every voiceprint
in it, overwriting existing enrollments for the same users.`,
	Args: cobra.ExactArgs(1),
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

		fs, err := backupStore(cfg)
		if err != nil {
			return err
		}

		n, err := voiceprint.Import(cmd.Context(), voiceprint.NewStore(store), fs, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported %d voiceprints from %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
