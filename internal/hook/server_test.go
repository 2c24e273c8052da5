package hook

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/farouqaldori/claude-island/internal/permission"
)

type fakeSyncer struct {
	mu      sync.Mutex
	loaded  map[string]bool
	loads   int
	syncs   int
	cleared []string
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{loaded: map[string]bool{}}
}

func (f *fakeSyncer) IsLoaded(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded[sessionID]
}

func (f *fakeSyncer) LoadFromFile(ctx context.Context, sessionID, cwd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded[sessionID] = true
	f.loads++
	return nil
}

func (f *fakeSyncer) SyncFromFile(ctx context.Context, sessionID, cwd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return nil
}

func (f *fakeSyncer) ClearHistory(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.loaded, sessionID)
	f.cleared = append(f.cleared, sessionID)
}

func startServer(t *testing.T) (*Server, *fakeSyncer, *permission.Manager) {
	t.Helper()
	syncer := newFakeSyncer()
	perms := permission.NewManager(5 * time.Second)
	srv, err := NewServer(t.TempDir(), syncer, perms)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, syncer, perms
}

func sendEvent(t *testing.T, srv *Server, ev Event) {
	t.Helper()
	conn, err := net.Dial("unix", srv.SocketPath())
	if err != nil {
		t.Fatalf("dial socket: %v", err)
	}
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(ev); err != nil {
		t.Fatalf("send event: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStatusTracking(t *testing.T) {
	srv, _, _ := startServer(t)

	sendEvent(t, srv, Event{
		HookEventName: EventPreToolUse,
		SessionID:     "sess",
		Cwd:           "/p",
		ToolName:      "Bash",
		AuthToken:     srv.Token(),
	})

	waitFor(t, func() bool {
		st, ok := srv.Statuses()["sess"]
		return ok && st.Status == StatusRunningTool && st.ToolName == "Bash"
	}, "status never recorded")
}

func TestRejectsBadAuthToken(t *testing.T) {
	srv, _, _ := startServer(t)

	sendEvent(t, srv, Event{
		HookEventName: EventPreToolUse,
		SessionID:     "sess",
		AuthToken:     "wrong",
	})

	time.Sleep(100 * time.Millisecond)
	if _, ok := srv.Statuses()["sess"]; ok {
		t.Fatal("event with bad token was accepted")
	}
}

func TestSessionEndClearsHistoryAndStatus(t *testing.T) {
	srv, syncer, _ := startServer(t)

	sendEvent(t, srv, Event{
		HookEventName: EventUserPromptSubmit,
		SessionID:     "sess",
		Cwd:           "/p",
		AuthToken:     srv.Token(),
	})
	waitFor(t, func() bool {
		syncer.mu.Lock()
		defer syncer.mu.Unlock()
		return syncer.loads == 1
	}, "prompt event never triggered a load")

	sendEvent(t, srv, Event{
		HookEventName: EventSessionEnd,
		SessionID:     "sess",
		AuthToken:     srv.Token(),
	})
	waitFor(t, func() bool {
		syncer.mu.Lock()
		defer syncer.mu.Unlock()
		return len(syncer.cleared) == 1 && syncer.cleared[0] == "sess"
	}, "session end never cleared history")

	if _, ok := srv.Statuses()["sess"]; ok {
		t.Fatal("ended session still has a status")
	}
}

func TestLoadedSessionSyncsInsteadOfLoading(t *testing.T) {
	srv, syncer, _ := startServer(t)
	syncer.loaded["sess"] = true

	sendEvent(t, srv, Event{
		HookEventName: EventStop,
		SessionID:     "sess",
		Cwd:           "/p",
		AuthToken:     srv.Token(),
	})

	waitFor(t, func() bool {
		syncer.mu.Lock()
		defer syncer.mu.Unlock()
		return syncer.syncs == 1 && syncer.loads == 0
	}, "stop event on loaded session did not sync")
}

func TestPermissionRequestRoundTrip(t *testing.T) {
	srv, _, perms := startServer(t)

	conn, err := net.Dial("unix", srv.SocketPath())
	if err != nil {
		t.Fatalf("dial socket: %v", err)
	}
	defer conn.Close()

	ev := Event{
		HookEventName: EventPermissionRequest,
		SessionID:     "sess",
		ToolName:      "Bash",
		ToolUseID:     "tool-1",
		ToolInput:     map[string]any{"command": "rm -rf /tmp/x"},
		AuthToken:     srv.Token(),
	}
	if err := json.NewEncoder(conn).Encode(ev); err != nil {
		t.Fatalf("send event: %v", err)
	}

	// Decide once the request shows up as pending.
	var reqID string
	waitFor(t, func() bool {
		pending := perms.Pending()
		if len(pending) == 1 {
			reqID = pending[0].ID
			return true
		}
		return false
	}, "permission request never became pending")

	if err := perms.Respond(reqID, permission.DecisionAllow, "looks fine"); err != nil {
		t.Fatalf("respond: %v", err)
	}

	var decision Decision
	if err := json.NewDecoder(conn).Decode(&decision); err != nil {
		t.Fatalf("read decision: %v", err)
	}
	if decision.Decision != permission.DecisionAllow {
		t.Errorf("decision = %q, want allow", decision.Decision)
	}
	if decision.Reason != "looks fine" {
		t.Errorf("reason = %q, want looks fine", decision.Reason)
	}
}

func TestPermissionPromptNotificationKeepsStatus(t *testing.T) {
	srv, _, _ := startServer(t)

	sendEvent(t, srv, Event{
		HookEventName: EventPreToolUse,
		SessionID:     "sess",
		ToolName:      "Bash",
		AuthToken:     srv.Token(),
	})
	waitFor(t, func() bool {
		st, ok := srv.Statuses()["sess"]
		return ok && st.Status == StatusRunningTool
	}, "tool status never recorded")

	sendEvent(t, srv, Event{
		HookEventName:    EventNotification,
		SessionID:        "sess",
		NotificationType: NotificationPermissionPrompt,
		Message:          "Claude needs your permission to use Bash",
		AuthToken:        srv.Token(),
	})

	time.Sleep(100 * time.Millisecond)
	if st := srv.Statuses()["sess"]; st.Status != StatusRunningTool {
		t.Fatalf("status = %q after permission_prompt notification, want %q unchanged",
			st.Status, StatusRunningTool)
	}
}

func TestIdlePromptNotificationMeansWaiting(t *testing.T) {
	srv, _, _ := startServer(t)

	sendEvent(t, srv, Event{
		HookEventName:    EventNotification,
		SessionID:        "sess",
		NotificationType: NotificationIdlePrompt,
		AuthToken:        srv.Token(),
	})

	waitFor(t, func() bool {
		st, ok := srv.Statuses()["sess"]
		return ok && st.Status == StatusWaitingForInput && st.NotificationType == NotificationIdlePrompt
	}, "idle_prompt never mapped to waiting_for_input")
}

func TestPostToolUseCancelsPendingRequest(t *testing.T) {
	srv, _, perms := startServer(t)

	req := perms.Create("sess", "Bash", "tool-1", nil)

	sendEvent(t, srv, Event{
		HookEventName: EventPostToolUse,
		SessionID:     "sess",
		Cwd:           "/p",
		ToolUseID:     "tool-1",
		AuthToken:     srv.Token(),
	})

	waitFor(t, func() bool {
		return perms.Get(req.ID) == nil
	}, "pending request survived PostToolUse")
}
