// Package cmd wires the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for claude-island.
var rootCmd = &cobra.Command{
	Use:   "claude-island",
	Short: "Session companion for Claude Code",
	Long:  "Tracks Claude Code sessions: parses their logs, follows live status via hooks, and relays permission prompts to the UI.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(viewCmd)
}
