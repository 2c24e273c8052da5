// Package settings persists small per-user state: custom session names and
// when each session was last viewed. Everything lives as JSON files in the
// app support directory.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	SessionNamesFile = "session-names.json"
	SessionViewsFile = "session-views.json"
)

// SessionManager handles session naming and view state.
type SessionManager struct {
	dir   string
	mu    sync.RWMutex
	names map[string]string // session ID -> custom name
	views map[string]int64  // session ID -> last viewed (Unix ms)
}

// NewSessionManager loads existing state from dir, creating it if needed.
func NewSessionManager(dir string) (*SessionManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	sm := &SessionManager{
		dir:   dir,
		names: map[string]string{},
		views: map[string]int64{},
	}
	_ = loadJSON(filepath.Join(dir, SessionNamesFile), &sm.names)
	_ = loadJSON(filepath.Join(dir, SessionViewsFile), &sm.views)
	return sm, nil
}

// SessionName returns the custom name for a session, or empty if unset.
func (sm *SessionManager) SessionName(sessionID string) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.names[sessionID]
}

// SetSessionName names a session. An empty name removes the entry.
func (sm *SessionManager) SetSessionName(sessionID, name string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if name == "" {
		delete(sm.names, sessionID)
	} else {
		sm.names[sessionID] = name
	}
	return saveJSON(filepath.Join(sm.dir, SessionNamesFile), sm.names)
}

// AllSessionNames returns a copy of every custom session name.
func (sm *SessionManager) AllSessionNames() map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make(map[string]string, len(sm.names))
	for id, name := range sm.names {
		out[id] = name
	}
	return out
}

// LastViewed returns when a session was last viewed (Unix ms), or 0.
func (sm *SessionManager) LastViewed(sessionID string) int64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.views[sessionID]
}

// MarkViewed records that a session was viewed now.
func (sm *SessionManager) MarkViewed(sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.views[sessionID] = time.Now().UnixMilli()
	return saveJSON(filepath.Join(sm.dir, SessionViewsFile), sm.views)
}

func loadJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, target)
}

func saveJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
