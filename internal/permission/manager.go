// Package permission tracks tool permission requests that are waiting for a
// user decision. The hook server and the MCP approval tool both create
// requests here; the feed (or a timeout) resolves them.
package permission

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Decision values accepted from the UI.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionAsk   = "ask"
)

// Response is the user's decision for one pending request.
type Response struct {
	Decision string `json:"decision"` // allow, deny, or ask
	Reason   string `json:"reason,omitempty"`
}

// Request is a permission request waiting for a user response.
type Request struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Tool      string         `json:"tool"`
	ToolUseID string         `json:"toolUseId,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`

	// ResponseCh delivers the decision; it is closed on cancellation.
	ResponseCh chan *Response `json:"-"`
}

// Manager holds pending requests keyed by id.
type Manager struct {
	mu      sync.RWMutex
	pending map[string]*Request
	timeout time.Duration
}

// NewManager creates a manager with the given decision timeout. Zero means the
// default of 5 minutes.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Manager{
		pending: make(map[string]*Request),
		timeout: timeout,
	}
}

// Create registers a new pending request and returns it.
func (m *Manager) Create(sessionID, tool, toolUseID string, input map[string]any) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := &Request{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Tool:       tool,
		ToolUseID:  toolUseID,
		Input:      input,
		CreatedAt:  time.Now(),
		ResponseCh: make(chan *Response, 1),
	}
	m.pending[req.ID] = req
	return req
}

// Get retrieves a pending request by id.
func (m *Manager) Get(id string) *Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[id]
}

// Pending returns every request still waiting for a decision.
func (m *Manager) Pending() []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Request, 0, len(m.pending))
	for _, req := range m.pending {
		result = append(result, req)
	}
	return result
}

// Respond resolves a pending request with the user's decision.
func (m *Manager) Respond(id, decision, reason string) error {
	m.mu.Lock()
	req, exists := m.pending[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("permission request %s not found", id)
	}
	delete(m.pending, id)
	m.mu.Unlock()

	select {
	case req.ResponseCh <- &Response{Decision: decision, Reason: reason}:
	default:
	}
	return nil
}

// Cancel removes a pending request and unblocks its waiter with a closed
// channel.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	req, exists := m.pending[id]
	if !exists {
		m.mu.Unlock()
		return
	}
	delete(m.pending, id)
	m.mu.Unlock()

	close(req.ResponseCh)
}

// CancelForToolUse cancels any pending request for a tool use id. The hook
// server calls this on PostToolUse: once the tool has run, the decision is
// moot.
func (m *Manager) CancelForToolUse(toolUseID string) {
	if toolUseID == "" {
		return
	}
	m.mu.Lock()
	var cancelled []*Request
	for id, req := range m.pending {
		if req.ToolUseID == toolUseID {
			delete(m.pending, id)
			cancelled = append(cancelled, req)
		}
	}
	m.mu.Unlock()

	for _, req := range cancelled {
		close(req.ResponseCh)
	}
}

// CancelAll cancels every pending request, for shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[string]*Request)
	m.mu.Unlock()

	for _, req := range pending {
		close(req.ResponseCh)
	}
}

// Timeout returns the configured decision timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Await blocks until the request resolves, the timeout elapses, or the request
// is cancelled. Timeout and cancellation both yield an ask decision so the
// caller falls back to Claude Code's own prompt.
func (m *Manager) Await(req *Request) *Response {
	select {
	case resp, ok := <-req.ResponseCh:
		if !ok || resp == nil {
			return &Response{Decision: DecisionAsk, Reason: "request cancelled"}
		}
		return resp
	case <-time.After(m.timeout):
		m.Cancel(req.ID)
		return &Response{Decision: DecisionAsk, Reason: "timed out waiting for decision"}
	}
}
