// Package mcpserver exposes the permission approval flow as an MCP tool.
// Claude Code configured with --permission-prompt-tool calls approval_prompt
// here; the call blocks until the user decides in the UI or the request times
// out.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/farouqaldori/claude-island/internal/permission"
)

// Service runs the MCP server over SSE.
type Service struct {
	perms *permission.Manager
	port  int

	// OnRequest, when set, observes each new pending approval request.
	OnRequest func(*permission.Request)

	server  *server.MCPServer
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
}

// NewService creates the MCP service on the given port.
func NewService(port int, perms *permission.Manager) *Service {
	return &Service{
		perms: perms,
		port:  port,
	}
}

// Port returns the port the server listens on.
func (s *Service) Port() int {
	return s.port
}

// Start registers the approval tool and begins serving. Calling Start on a
// running service is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	mcpServer := server.NewMCPServer(
		"ClaudeIsland",
		"0.1.0",
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTool(createApprovalPromptTool(), s.handleApprovalPrompt)
	s.server = mcpServer

	go func() {
		sseServer := server.NewSSEServer(mcpServer,
			server.WithBaseURL(fmt.Sprintf("http://localhost:%d", s.port)),
		)

		httpServer := &http.Server{
			Addr:    fmt.Sprintf("localhost:%d", s.port),
			Handler: sseServer,
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Printf("[MCP] server error: %v\n", err)
			}
		}()

		<-s.ctx.Done()
		httpServer.Close()
	}()

	s.running = true
	return nil
}

// Stop shuts the server down and cancels pending approval waits.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// IsRunning reports whether the server is serving.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
