// Package history exposes read access to filtered session timelines. It keeps
// a per-session cache rebuilt from store snapshots, with sub-agent owned tool
// calls already filtered out, so UI-facing callers never see intermediate
// state.
package history

import (
	"context"

	"github.com/farouqaldori/claude-island/internal/chat"
	"github.com/farouqaldori/claude-island/internal/store"
)

// Accessor caches the filtered timeline per session and tracks which sessions
// have had their log loaded.
type Accessor struct {
	store  *store.Store
	source store.ConversationSource

	events chan func()
	done   chan struct{}

	histories map[string][]chat.ChatItem
	loaded    map[string]bool
}

// New creates an accessor over the given store and parse source. It consumes
// store snapshots in the background until Close.
func New(st *store.Store, source store.ConversationSource) *Accessor {
	a := &Accessor{
		store:     st,
		source:    source,
		events:    make(chan func(), 64),
		done:      make(chan struct{}),
		histories: map[string][]chat.ChatItem{},
		loaded:    map[string]bool{},
	}
	go a.run(st.Subscribe())
	return a
}

// Close stops the snapshot consumer.
func (a *Accessor) Close() {
	close(a.done)
}

// run owns all accessor state. Cache rebuilds from store snapshots and
// read/write requests are serialized on one goroutine.
func (a *Accessor) run(snapshots <-chan store.Snapshot) {
	for {
		select {
		case <-a.done:
			return
		case snap := <-snapshots:
			a.rebuild(snap.Sessions)
		case fn := <-a.events:
			fn()
		}
	}
}

// exec runs fn on the accessor goroutine and waits for it.
func (a *Accessor) exec(fn func()) {
	done := make(chan struct{})
	select {
	case a.events <- func() { fn(); close(done) }:
		<-done
	case <-a.done:
	}
}

// rebuild replaces the cache wholesale with the filtered view of every loaded
// session in the snapshot. Sessions not in the loaded set are skipped: every
// store submission travels through LoadFromFile or SyncFromFile, which flag
// the session first, so the only unloaded sessions a snapshot can carry are
// ones ClearHistory just dropped. Skipping them keeps a cleared session empty
// even when a stale snapshot or an in-flight load lands afterwards.
func (a *Accessor) rebuild(sessions map[string]chat.Session) {
	fresh := make(map[string][]chat.ChatItem, len(sessions))
	for id, sess := range sessions {
		if !a.loaded[id] {
			continue
		}
		fresh[id] = chat.FilterSubagentItems(sess.ChatItems)
	}
	a.histories = fresh
}

// =============================================================================
// LOAD AND SYNC
// =============================================================================

// LoadFromFile parses the session's full log and installs it, once. Repeat
// calls for a loaded session return immediately without touching the log.
// When it returns without error the refreshed timeline is observable via
// History.
func (a *Accessor) LoadFromFile(ctx context.Context, sessionID, cwd string) error {
	already := false
	a.exec(func() {
		already = a.loaded[sessionID]
		a.loaded[sessionID] = true
	})
	if already {
		return nil
	}

	done := make(chan struct{})
	a.store.Submit(store.LoadHistory{SessionID: sessionID, Cwd: cwd, Done: done})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.refresh()
	return nil
}

// SyncFromFile re-parses the session's log and merges the result into the
// store, then refreshes the cache. Unlike LoadFromFile it always re-reads.
func (a *Accessor) SyncFromFile(ctx context.Context, sessionID, cwd string) error {
	update := chat.FileUpdate{
		SessionID:         sessionID,
		Cwd:               cwd,
		Items:             a.source.ParseFullConversation(sessionID, cwd),
		CompletedToolIDs:  a.source.CompletedToolIDs(sessionID, cwd),
		ToolResults:       a.source.ToolResults(sessionID, cwd),
		StructuredResults: a.source.StructuredResults(sessionID, cwd),
	}

	a.exec(func() { a.loaded[sessionID] = true })

	done := make(chan struct{})
	a.store.Submit(store.FileUpdated{Update: update, Done: done})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.refresh()
	return nil
}

// refresh pulls the store's current state into the cache synchronously, so a
// caller that has just awaited an event sees its effect on the next read even
// if the subscription snapshot has not been drained yet.
func (a *Accessor) refresh() {
	sessions := a.store.Sessions()
	a.exec(func() { a.rebuild(sessions) })
}

// ClearHistory drops the session's cache and loaded flag immediately, then
// notifies the store without waiting for the removal to apply. A load issued
// before the clear may still land in the store afterwards, but rebuild skips
// unloaded sessions, so History and IsLoaded stay empty from the moment this
// returns.
func (a *Accessor) ClearHistory(sessionID string) {
	a.exec(func() {
		delete(a.histories, sessionID)
		delete(a.loaded, sessionID)
	})
	go a.store.Submit(store.SessionEnded{SessionID: sessionID})
}

// =============================================================================
// READS
// =============================================================================

// History returns a copy of the filtered timeline for a session. Unknown
// sessions yield an empty slice.
func (a *Accessor) History(sessionID string) []chat.ChatItem {
	var items []chat.ChatItem
	a.exec(func() {
		items = chat.CloneItems(a.histories[sessionID])
	})
	if items == nil {
		return []chat.ChatItem{}
	}
	return items
}

// IsLoaded reports whether LoadFromFile or SyncFromFile has run for the
// session since startup or its last ClearHistory.
func (a *Accessor) IsLoaded(sessionID string) bool {
	var ok bool
	a.exec(func() { ok = a.loaded[sessionID] })
	return ok
}

// =============================================================================
// LEGACY MUTATORS
// =============================================================================

// Earlier builds pushed per-tool status edits here before log re-parsing
// became the single source of truth. The methods remain for callers that still
// invoke them and deliberately do nothing.

func (a *Accessor) MarkToolWaitingForApproval(sessionID, toolUseID string) {}

func (a *Accessor) MarkToolApproved(sessionID, toolUseID string) {}

func (a *Accessor) MarkToolDenied(sessionID, toolUseID string) {}

func (a *Accessor) TrackSubagentTool(sessionID, taskToolID, subToolID string) {}
