// Package main is the entry point for the voicegate CLI.
//
// Usage:
//
//	voicegate [flags] <command> [args]
//
// Commands:
//
//	serve         - Run the voice authentication server
//	enroll        - Enroll a user from WAV recordings
//	authenticate  - Score a WAV recording against an enrolled user
//	users         - List or delete enrolled voiceprints
//	export        - Export all voiceprints to a backup file
//	import        - Import voiceprints from a backup file
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/voicegate/cmd/voicegate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
