package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authenticateCmd = &cobra.Command{
	Use:   "authenticate <user> <wav>",
	Short: "Score a WAV recording against an enrolled user",
	Args:  cobra.ExactArgs(2),
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

		sig, err := readSignal(args[1])
		if err != nil {
			return err
		}

		engine := buildEngine(cfg, store)
		decision, err := engine.Authenticate(cmd.Context(), args[0], sig)
		if err != nil {
			return err
		}

		verdict := "REJECT"
		if decision.Accept {
			verdict = "ACCEPT"
		}
		fmt.Printf("%s  score=%.4f  threshold=%.2f\n", verdict, decision.Score, engine.Threshold())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authenticateCmd)
}
