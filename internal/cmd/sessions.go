package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/farouqaldori/claude-island/internal/config"
	"github.com/farouqaldori/claude-island/internal/index"
	"github.com/farouqaldori/claude-island/internal/settings"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List cataloged sessions",
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	catalog, err := index.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	names, err := settings.NewSessionManager(cfg.AppSupportDir)
	if err != nil {
		return err
	}

	entries, err := catalog.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, " \tSESSION\tNAME\tPROJECT\tITEMS\tUPDATED")
	for _, e := range entries {
		name := names.SessionName(e.SessionID)
		if name == "" {
			name = firstPromptLabel(e.FirstPrompt)
		}
		marker := " "
		if isUnread(e, names.LastViewed(e.SessionID)) {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			marker, shortID(e.SessionID), name, e.Cwd, e.ItemCount,
			e.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

// isUnread reports whether a session changed since it was last viewed.
// lastViewed is Unix milliseconds, zero for never.
func isUnread(e index.Entry, lastViewed int64) bool {
	if lastViewed == 0 {
		return true
	}
	return e.UpdatedAt.UnixMilli() > lastViewed
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstPromptLabel(prompt string) string {
	if len(prompt) > 40 {
		return prompt[:40] + "..."
	}
	return prompt
}
