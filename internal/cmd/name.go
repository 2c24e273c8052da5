package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farouqaldori/claude-island/internal/config"
	"github.com/farouqaldori/claude-island/internal/settings"
)

var nameCmd = &cobra.Command{
	Use:   "name <session-id> [name]",
	Short: "Set or clear a custom session name",
	Long:  "Assigns a custom display name to a session. Omit the name to clear it.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runName,
}

func runName(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	names, err := settings.NewSessionManager(cfg.AppSupportDir)
	if err != nil {
		return err
	}

	sessionID := args[0]
	name := ""
	if len(args) == 2 {
		name = args[1]
	}

	if err := names.SetSessionName(sessionID, name); err != nil {
		return err
	}
	if name == "" {
		fmt.Printf("cleared name for session %s\n", sessionID)
	} else {
		fmt.Printf("session %s named %q\n", sessionID, name)
	}
	return nil
}
