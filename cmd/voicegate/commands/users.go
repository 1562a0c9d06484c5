package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicegate/pkg/voiceprint"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage enrolled voiceprints",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		prints, err := voiceprint.NewStore(store).List(cmd.Context())
		if err != nil {
			return err
		}
		for _, vp := range prints {
			fmt.Printf("%s\tsamples=%d\tenrolled=%s\tupdated=%s\n",
				vp.UserID, vp.SampleCount,
				vp.CreatedAt.Format("2006-01-02 15:04:05"),
				vp.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user>",
	Short: "Delete a user's voiceprint",
	Args:  cobra.ExactArgs(1),
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

		if err := voiceprint.NewStore(store).Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}
