package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/farouqaldori/claude-island/internal/config"
	"github.com/farouqaldori/claude-island/internal/feed"
	"github.com/farouqaldori/claude-island/internal/history"
	"github.com/farouqaldori/claude-island/internal/hook"
	"github.com/farouqaldori/claude-island/internal/index"
	"github.com/farouqaldori/claude-island/internal/mcpserver"
	"github.com/farouqaldori/claude-island/internal/parse"
	"github.com/farouqaldori/claude-island/internal/permission"
	"github.com/farouqaldori/claude-island/internal/settings"
	"github.com/farouqaldori/claude-island/internal/store"
	"github.com/farouqaldori/claude-island/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session core: watcher, hook socket, feed, and MCP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	parser := parse.NewParser(cfg.ProjectsDir)
	st := store.New(parser)
	defer st.Close()

	accessor := history.New(st, parser)
	defer accessor.Close()

	perms := permission.NewManager(time.Duration(cfg.PermissionTimeoutSecs) * time.Second)
	defer perms.CancelAll()

	catalog, err := index.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	w, err := watcher.New(cfg.ProjectsDir, accessor)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WatchAll(); err != nil {
		fmt.Fprintf(os.Stderr, "watch projects: %v\n", err)
	}

	uiFeed := feed.New(perms)

	hookServer, err := hook.NewServer(cfg.AppSupportDir, accessor, perms)
	if err != nil {
		return err
	}
	hookServer.Watcher = w
	hookServer.OnStatus = func(status hook.SessionStatus) {
		uiFeed.Broadcast("status", status)
	}
	hookServer.OnPermissionRequest = func(req *permission.Request) {
		uiFeed.Broadcast("permission_request", req)
	}
	if err := hookServer.Start(); err != nil {
		return err
	}
	defer hookServer.Close()

	mcp := mcpserver.NewService(cfg.MCPPort, perms)
	mcp.OnRequest = hookServer.OnPermissionRequest
	if err := mcp.Start(); err != nil {
		return err
	}
	defer mcp.Stop()

	names, err := settings.NewSessionManager(cfg.AppSupportDir)
	if err != nil {
		return err
	}

	// Mirror every store snapshot to the UI feed and the session catalog.
	go func() {
		for snap := range st.Subscribe() {
			for _, sess := range snap.Sessions {
				if err := catalog.UpsertSession(sess); err != nil {
					fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
				}
			}
			uiFeed.Broadcast("sessions", map[string]any{
				"sessions": snap.Sessions,
				"names":    names.AllSessionNames(),
			})
		}
	}()

	httpServer := &http.Server{Addr: cfg.ListenAddr}
	http.HandleFunc("/feed", uiFeed.Handler())
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "feed server: %v\n", err)
		}
	}()
	defer httpServer.Close()

	fmt.Printf("claude-island serving: feed on %s, hooks on %s, MCP on port %d\n",
		cfg.ListenAddr, hookServer.SocketPath(), mcp.Port())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("shutting down")
	return nil
}
