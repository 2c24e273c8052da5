// Package feed streams session state to UI clients over WebSocket and accepts
// permission decisions back from them.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/farouqaldori/claude-island/internal/permission"
)

// Envelope wraps every message in both directions with a type tag.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-server payloads.
type permissionDecision struct {
	RequestID string `json:"requestId"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
}

// Feed is a broadcast hub over all connected UI clients.
type Feed struct {
	perms    *permission.Manager
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a feed that routes permission decisions to the given manager.
func New(perms *permission.Manager) *Feed {
	return &Feed{
		perms: perms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The socket binds to localhost; the UI process is the only
			// expected client.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]struct{}{},
	}
}

// Handler upgrades the request and serves the connection until it drops.
func (f *Feed) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		f.mu.Lock()
		f.conns[conn] = struct{}{}
		f.mu.Unlock()

		f.readLoop(conn)

		f.mu.Lock()
		delete(f.conns, conn)
		f.mu.Unlock()
		conn.Close()
	}
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != "permission_decision" {
			continue
		}
		var dec permissionDecision
		if err := json.Unmarshal(env.Payload, &dec); err != nil {
			continue
		}
		_ = f.perms.Respond(dec.RequestID, dec.Decision, dec.Reason)
	}
}

// Broadcast sends a typed payload to every connected client. Connections that
// fail to write are dropped.
func (f *Feed) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	env := Envelope{Type: msgType, Payload: data}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.conns {
		if err := conn.WriteJSON(env); err != nil {
			delete(f.conns, conn)
			conn.Close()
		}
	}
}

// ClientCount reports the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}
