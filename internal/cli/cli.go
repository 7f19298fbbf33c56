// Package cli is the command-line surface: cobra commands, survey prompts
// and the lipgloss status board over the pipeline's status stream.
package cli

import (
	"os"
)

// Run executes the root command.
func Run() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
