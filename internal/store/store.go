// Package store owns the canonical per-session timeline state. All mutation
// flows through a single goroutine draining a typed event channel, so no state
// transition ever races another; readers receive deep-copied snapshots over a
// subscription channel.
package store

import (
	"sync"

	"github.com/farouqaldori/claude-island/internal/chat"
)

// =============================================================================
// CONVERSATION SOURCE
// =============================================================================

// ConversationSource supplies parsed session data. *parse.Parser satisfies it;
// tests substitute fakes.
type ConversationSource interface {
	ParseFullConversation(sessionID, cwd string) []chat.ChatItem
	CompletedToolIDs(sessionID, cwd string) map[string]struct{}
	ToolResults(sessionID, cwd string) map[string]string
	StructuredResults(sessionID, cwd string) map[string]any
}

// =============================================================================
// EVENTS
// =============================================================================

// Event is a request processed by the store's run loop. Done channels, when
// set, are closed after the event has been applied and the resulting snapshot
// published, so callers can await visibility.
type Event interface{ isEvent() }

// LoadHistory asks the store to parse a session's log from scratch and install
// the result.
type LoadHistory struct {
	SessionID string
	Cwd       string
	Done      chan struct{}
}

// FileUpdated carries a pre-parsed snapshot to merge into canonical state.
type FileUpdated struct {
	Update chat.FileUpdate
	Done   chan struct{}
}

// SessionEnded removes a session's state entirely.
type SessionEnded struct {
	SessionID string
	Done      chan struct{}
}

func (LoadHistory) isEvent()  {}
func (FileUpdated) isEvent()  {}
func (SessionEnded) isEvent() {}

// =============================================================================
// STORE
// =============================================================================

// Snapshot is the published view of all sessions after a state transition.
type Snapshot struct {
	Sessions map[string]chat.Session
}

// Store serializes all session-state mutation through one goroutine.
type Store struct {
	source ConversationSource

	events chan Event
	done   chan struct{}

	mu       sync.RWMutex
	sessions map[string]chat.Session

	subMu sync.Mutex
	subs  []chan Snapshot
}

// New creates a store backed by the given source and starts its run loop.
func New(source ConversationSource) *Store {
	s := &Store{
		source:   source,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		sessions: map[string]chat.Session{},
	}
	go s.run()
	return s
}

// Submit enqueues an event for the run loop. It blocks only if the queue is
// full; after Close it is a no-op.
func (s *Store) Submit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Close stops the run loop. Pending events are dropped.
func (s *Store) Close() {
	close(s.done)
}

// Subscribe returns a channel that receives the latest snapshot after every
// state transition. The channel holds at most one pending snapshot: if the
// subscriber lags, intermediate snapshots are replaced, never queued.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Sessions returns a deep copy of every known session.
func (s *Store) Sessions() map[string]chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySessions(s.sessions)
}

// Session returns a deep copy of one session, if known.
func (s *Store) Session(sessionID string) (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, false
	}
	sess.ChatItems = chat.CloneItems(sess.ChatItems)
	return sess, true
}

// =============================================================================
// RUN LOOP
// =============================================================================

func (s *Store) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			done := s.apply(ev)
			s.publish()
			if done != nil {
				close(done)
			}
		}
	}
}

func (s *Store) apply(ev Event) chan struct{} {
	switch e := ev.(type) {
	case LoadHistory:
		s.applyLoad(e.SessionID, e.Cwd)
		return e.Done
	case FileUpdated:
		s.applyUpdate(e.Update)
		return e.Done
	case SessionEnded:
		s.mu.Lock()
		delete(s.sessions, e.SessionID)
		s.mu.Unlock()
		return e.Done
	}
	return nil
}

func (s *Store) applyLoad(sessionID, cwd string) {
	if sessionID == "" {
		return
	}
	update := chat.FileUpdate{
		SessionID:         sessionID,
		Cwd:               cwd,
		Items:             s.source.ParseFullConversation(sessionID, cwd),
		CompletedToolIDs:  s.source.CompletedToolIDs(sessionID, cwd),
		ToolResults:       s.source.ToolResults(sessionID, cwd),
		StructuredResults: s.source.StructuredResults(sessionID, cwd),
	}
	s.applyUpdate(update)
}

// applyUpdate merges a parsed snapshot into canonical state. The incoming item
// list wins per id (last write wins), results attach only to tools in the
// completed set, and Task sub-agent children accumulate in arrival order.
// Applying the same update twice leaves state unchanged.
func (s *Store) applyUpdate(update chat.FileUpdate) {
	if update.SessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.sessions[update.SessionID]

	prevByID := make(map[string]chat.ChatItem, len(existing.ChatItems))
	for _, it := range existing.ChatItems {
		prevByID[it.ID] = it
	}

	items := chat.CloneItems(update.Items)
	for i := range items {
		it := &items[i]
		if it.Tool == nil {
			continue
		}

		if prev, ok := prevByID[it.ID]; ok && prev.Tool != nil {
			it.Tool.SubagentTools = mergeSubagents(prev.Tool.SubagentTools, it.Tool.SubagentTools)
		}

		if _, completed := update.CompletedToolIDs[it.ID]; completed {
			if result, ok := update.ToolResults[it.ID]; ok {
				it.Tool.Result = result
			}
			if structured, ok := update.StructuredResults[it.ID]; ok {
				it.Tool.StructuredResult = structured
			}
		}
	}

	cwd := update.Cwd
	if cwd == "" {
		cwd = existing.Cwd
	}
	s.sessions[update.SessionID] = chat.Session{
		SessionID: update.SessionID,
		Cwd:       cwd,
		ChatItems: items,
	}
}

// mergeSubagents keeps the previously observed child order and appends
// newly seen children at the end.
func mergeSubagents(prev, next []chat.SubagentToolCall) []chat.SubagentToolCall {
	if len(prev) == 0 {
		return next
	}

	nextByID := make(map[string]chat.SubagentToolCall, len(next))
	for _, sub := range next {
		nextByID[sub.ID] = sub
	}

	merged := make([]chat.SubagentToolCall, 0, len(prev)+len(next))
	seen := make(map[string]struct{}, len(prev))
	for _, sub := range prev {
		if updated, ok := nextByID[sub.ID]; ok {
			merged = append(merged, updated)
		} else {
			merged = append(merged, sub)
		}
		seen[sub.ID] = struct{}{}
	}
	for _, sub := range next {
		if _, ok := seen[sub.ID]; !ok {
			merged = append(merged, sub)
		}
	}
	return merged
}

// =============================================================================
// PUBLISH
// =============================================================================

func (s *Store) publish() {
	s.mu.RLock()
	snap := Snapshot{Sessions: copySessions(s.sessions)}
	s.mu.RUnlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		// Latest wins: drop the stale pending snapshot if the subscriber
		// has not drained it yet.
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func copySessions(in map[string]chat.Session) map[string]chat.Session {
	out := make(map[string]chat.Session, len(in))
	for id, sess := range in {
		sess.ChatItems = chat.CloneItems(sess.ChatItems)
		out[id] = sess
	}
	return out
}
