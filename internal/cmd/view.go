package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/farouqaldori/claude-island/internal/chat"
	"github.com/farouqaldori/claude-island/internal/config"
	"github.com/farouqaldori/claude-island/internal/index"
	"github.com/farouqaldori/claude-island/internal/parse"
	"github.com/farouqaldori/claude-island/internal/settings"
)

var viewCmd = &cobra.Command{
	Use:   "view <session-id>",
	Short: "Print a session's timeline and mark it viewed",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sessionID := args[0]

	catalog, err := index.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	cwd, err := sessionCwd(catalog, sessionID)
	if err != nil {
		return err
	}

	parser := parse.NewParser(cfg.ProjectsDir)
	items := chat.FilterSubagentItems(parser.ParseFullConversation(sessionID, cwd))
	if len(items) == 0 {
		return fmt.Errorf("no history for session %s", sessionID)
	}

	out := cmd.OutOrStdout()
	for _, it := range items {
		fmt.Fprintln(out, formatItem(it))
	}

	views, err := settings.NewSessionManager(cfg.AppSupportDir)
	if err != nil {
		return err
	}
	return views.MarkViewed(sessionID)
}

// sessionCwd resolves a session's working directory from the catalog.
func sessionCwd(catalog *index.DB, sessionID string) (string, error) {
	entries, err := catalog.List()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.SessionID == sessionID {
			return e.Cwd, nil
		}
	}
	return "", fmt.Errorf("session %s not in catalog; run serve to discover it", sessionID)
}

func formatItem(it chat.ChatItem) string {
	switch it.Kind {
	case chat.KindUser:
		return "> " + it.Text
	case chat.KindAssistant:
		return it.Text
	case chat.KindThinking:
		return "[thinking] " + firstLine(it.Text)
	case chat.KindInterrupted:
		return "[interrupted]"
	case chat.KindToolCall:
		line := fmt.Sprintf("[%s] %s", it.Tool.Status, it.Tool.Name)
		if len(it.Tool.SubagentTools) > 0 {
			line += fmt.Sprintf(" (%d sub-agent tools)", len(it.Tool.SubagentTools))
		}
		return line
	}
	return it.Text
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
