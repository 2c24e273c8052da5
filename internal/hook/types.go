package hook

import "time"

// Hook event names as Claude Code sends them.
const (
	EventUserPromptSubmit  = "UserPromptSubmit"
	EventPreToolUse        = "PreToolUse"
	EventPostToolUse       = "PostToolUse"
	EventPermissionRequest = "PermissionRequest"
	EventNotification      = "Notification"
	EventStop              = "Stop"
	EventSubagentStop      = "SubagentStop"
	EventSessionStart      = "SessionStart"
	EventSessionEnd        = "SessionEnd"
	EventPreCompact        = "PreCompact"
)

// Session statuses derived from hook events.
const (
	StatusProcessing         = "processing"
	StatusRunningTool        = "running_tool"
	StatusWaitingForApproval = "waiting_for_approval"
	StatusWaitingForInput    = "waiting_for_input"
	StatusCompacting         = "compacting"
	StatusEnded              = "ended"
	StatusNotification       = "notification"
	StatusUnknown            = "unknown"
)

// Notification subtypes Claude Code sends.
const (
	NotificationPermissionPrompt = "permission_prompt"
	NotificationIdlePrompt       = "idle_prompt"
)

// Event is one hook invocation delivered over the socket. Field names match
// the JSON the hook scripts emit.
type Event struct {
	HookEventName    string         `json:"hook_event_name"`
	SessionID        string         `json:"session_id"`
	Cwd              string         `json:"cwd,omitempty"`
	ToolName         string         `json:"tool_name,omitempty"`
	ToolUseID        string         `json:"tool_use_id,omitempty"`
	ToolInput        map[string]any `json:"tool_input,omitempty"`
	NotificationType string         `json:"notification_type,omitempty"`
	Message          string         `json:"message,omitempty"`
	AuthToken        string         `json:"_auth_token,omitempty"`
}

// Decision is the reply written back for a PermissionRequest event.
type Decision struct {
	Decision string `json:"decision"` // allow, deny, or ask
	Reason   string `json:"reason,omitempty"`
}

// SessionStatus is the tracked state of one session.
type SessionStatus struct {
	SessionID        string    `json:"sessionId"`
	Cwd              string    `json:"cwd,omitempty"`
	Status           string    `json:"status"`
	ToolName         string    `json:"toolName,omitempty"`
	NotificationType string    `json:"notificationType,omitempty"`
	Message          string    `json:"message,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// statusForEvent maps a hook event to the session status it implies. The
// second return is false when the event carries no status transition at all.
func statusForEvent(ev Event) (string, bool) {
	switch ev.HookEventName {
	case EventUserPromptSubmit, EventPostToolUse:
		return StatusProcessing, true
	case EventPreToolUse:
		return StatusRunningTool, true
	case EventPermissionRequest:
		return StatusWaitingForApproval, true
	case EventNotification:
		switch ev.NotificationType {
		case NotificationPermissionPrompt:
			// The PermissionRequest hook covers this moment with full tool
			// info; recording it here would clobber waiting_for_approval.
			return "", false
		case NotificationIdlePrompt:
			return StatusWaitingForInput, true
		}
		return StatusNotification, true
	case EventStop, EventSubagentStop, EventSessionStart:
		// A fresh session and a finished sub-agent are both idle.
		return StatusWaitingForInput, true
	case EventPreCompact:
		return StatusCompacting, true
	case EventSessionEnd:
		return StatusEnded, true
	}
	return StatusUnknown, true
}
