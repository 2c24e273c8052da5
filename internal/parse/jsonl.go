// Package parse reads Claude Code JSONL session logs and reconstructs ordered
// chat timelines. The parser is read-only over the logs and may be called
// repeatedly with the same inputs to re-derive a fresh snapshot; a missing or
// unreadable log yields empty collections rather than an error.
package parse

// JSONL event type discriminators.
const (
	EventTypeUser      = "user"
	EventTypeAssistant = "assistant"
	EventTypeSystem    = "system"
	EventTypeSummary   = "summary"
)

// Envelope contains the common fields present across most JSONL events.
type Envelope struct {
	Type        string `json:"type"`
	UUID        string `json:"uuid,omitempty"`
	Timestamp   string `json:"timestamp"`
	SessionID   string `json:"sessionId,omitempty"`
	ParentUUID  string `json:"parentUuid,omitempty"`
	Cwd         string `json:"cwd,omitempty"`
	IsSidechain bool   `json:"isSidechain,omitempty"`
	UserType    string `json:"userType,omitempty"`
}

// UserEvent is a user input message (or a tool_result carrier) in the log.
type UserEvent struct {
	Envelope
	Message                   UserMessage    `json:"message"`
	IsCompactSummary          bool           `json:"isCompactSummary,omitempty"`
	IsVisibleInTranscriptOnly bool           `json:"isVisibleInTranscriptOnly,omitempty"`
	IsMeta                    bool           `json:"isMeta,omitempty"`
	ToolUseResult             map[string]any `json:"toolUseResult,omitempty"`
}

// UserMessage holds the role and content of a user event. Content is either a
// plain string or an array of content blocks (for tool_result carriers).
type UserMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// AssistantEvent is Claude's response in the log.
type AssistantEvent struct {
	Envelope
	Message           AssistantMessage `json:"message"`
	IsAPIErrorMessage bool             `json:"isApiErrorMessage,omitempty"`
}

// AssistantMessage is the message body of an assistant event.
type AssistantMessage struct {
	Model      string         `json:"model"`
	ID         string         `json:"id"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
}

// ContentBlock is a single block within a message: text, tool_use,
// tool_result, or thinking. Field names align with the Claude Code API schema
// for direct parsing.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"`
	IsError   bool   `json:"is_error"` // must not use omitempty

	// thinking
	Thinking string `json:"thinking,omitempty"`
}

// SystemEvent carries system metadata (turn durations, compact boundaries).
type SystemEvent struct {
	Envelope
	Subtype string `json:"subtype"`
	IsMeta  bool   `json:"isMeta,omitempty"`
}

// SummaryEvent is a context compaction summary.
type SummaryEvent struct {
	Type     string `json:"type"`
	Summary  string `json:"summary"`
	LeafUUID string `json:"leafUuid"`
}
