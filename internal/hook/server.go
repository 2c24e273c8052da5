// Package hook receives Claude Code hook events over a Unix socket and turns
// them into session status updates, history refreshes, and pending permission
// requests. Each connection carries one JSON event; PermissionRequest
// connections stay open until a decision is written back.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farouqaldori/claude-island/internal/permission"
)

const (
	SocketName    = "hook.sock"
	TokenFileName = "auth_token"
)

// HistorySyncer is the slice of the history accessor the server drives.
type HistorySyncer interface {
	IsLoaded(sessionID string) bool
	LoadFromFile(ctx context.Context, sessionID, cwd string) error
	SyncFromFile(ctx context.Context, sessionID, cwd string) error
	ClearHistory(sessionID string)
}

// ProjectWatcher registers new project folders as sessions start.
type ProjectWatcher interface {
	WatchProject(cwd string) error
}

// Server listens on the hook socket. All hook clients must present the auth
// token persisted next to the socket.
type Server struct {
	dir      string
	accessor HistorySyncer
	perms    *permission.Manager

	// Watcher is optional; when set, SessionStart registers the project
	// folder with it.
	Watcher ProjectWatcher

	// OnStatus, when set, observes every status transition.
	OnStatus func(SessionStatus)
	// OnPermissionRequest, when set, observes each new pending request.
	OnPermissionRequest func(*permission.Request)

	listener net.Listener
	token    string

	mu       sync.RWMutex
	statuses map[string]SessionStatus

	done chan struct{}
	wg   sync.WaitGroup
}

// NewServer prepares the socket directory and auth token. Call Start to begin
// accepting connections.
func NewServer(dir string, accessor HistorySyncer, perms *permission.Manager) (*Server, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	token, err := loadOrCreateToken(filepath.Join(dir, TokenFileName))
	if err != nil {
		return nil, err
	}

	return &Server{
		dir:      dir,
		accessor: accessor,
		perms:    perms,
		token:    token,
		statuses: map[string]SessionStatus{},
		done:     make(chan struct{}),
	}, nil
}

// loadOrCreateToken reuses the existing token file or writes a fresh one with
// owner-only permissions, so only the same user's hook processes can talk to
// the socket.
func loadOrCreateToken(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data), nil
	}
	token := uuid.New().String()
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("write auth token: %w", err)
	}
	return token, nil
}

// SocketPath returns the path hook clients connect to.
func (s *Server) SocketPath() string {
	return filepath.Join(s.dir, SocketName)
}

// Token returns the auth token hook clients must send.
func (s *Server) Token() string {
	return s.token
}

// Start removes any stale socket, binds, and begins accepting connections.
func (s *Server) Start() error {
	path := s.SocketPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen on hook socket: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Close stops accepting and waits for in-flight connections.
func (s *Server) Close() error {
	close(s.done)
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}

// Statuses returns a copy of the latest status per session.
func (s *Server) Statuses() map[string]SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SessionStatus, len(s.statuses))
	for id, st := range s.statuses {
		out[id] = st
	}
	return out
}

// =============================================================================
// CONNECTION HANDLING
// =============================================================================

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var ev Event
	if err := json.NewDecoder(conn).Decode(&ev); err != nil {
		return
	}
	if ev.AuthToken != s.token {
		return
	}
	if ev.SessionID == "" {
		return
	}
	// The permission wait below must not inherit the read deadline.
	_ = conn.SetReadDeadline(time.Time{})

	s.recordStatus(ev)

	switch ev.HookEventName {
	case EventSessionStart:
		if s.Watcher != nil && ev.Cwd != "" {
			_ = s.Watcher.WatchProject(ev.Cwd)
		}
		s.refreshAsync(ev)

	case EventSessionEnd:
		s.accessor.ClearHistory(ev.SessionID)

	case EventPermissionRequest:
		s.handlePermissionRequest(conn, ev)

	case EventPostToolUse:
		s.perms.CancelForToolUse(ev.ToolUseID)
		s.refreshAsync(ev)

	case EventUserPromptSubmit, EventStop, EventSubagentStop:
		s.refreshAsync(ev)
	}
}

func (s *Server) recordStatus(ev Event) {
	derived, ok := statusForEvent(ev)
	if !ok {
		return
	}
	status := SessionStatus{
		SessionID:        ev.SessionID,
		Cwd:              ev.Cwd,
		Status:           derived,
		ToolName:         ev.ToolName,
		NotificationType: ev.NotificationType,
		Message:          ev.Message,
		UpdatedAt:        time.Now(),
	}

	s.mu.Lock()
	if ev.HookEventName == EventSessionEnd {
		delete(s.statuses, ev.SessionID)
	} else {
		s.statuses[ev.SessionID] = status
	}
	s.mu.Unlock()

	if s.OnStatus != nil {
		s.OnStatus(status)
	}
}

// refreshAsync kicks a log load or sync without blocking the hook client,
// which Claude Code is waiting on.
func (s *Server) refreshAsync(ev Event) {
	sessionID, cwd := ev.SessionID, ev.Cwd
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if s.accessor.IsLoaded(sessionID) {
			_ = s.accessor.SyncFromFile(ctx, sessionID, cwd)
			return
		}
		_ = s.accessor.LoadFromFile(ctx, sessionID, cwd)
	}()
}

// handlePermissionRequest blocks the hook connection until the user decides or
// the manager times out, then writes the decision back. Claude Code holds the
// tool call open on its side until this reply arrives.
func (s *Server) handlePermissionRequest(conn net.Conn, ev Event) {
	req := s.perms.Create(ev.SessionID, ev.ToolName, ev.ToolUseID, ev.ToolInput)
	if s.OnPermissionRequest != nil {
		s.OnPermissionRequest(req)
	}

	resp := s.perms.Await(req)
	decision := Decision{Decision: resp.Decision, Reason: resp.Reason}
	_ = json.NewEncoder(conn).Encode(decision)
}
