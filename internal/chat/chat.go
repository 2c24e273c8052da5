// Package chat defines the canonical timeline data model for Claude Code
// sessions: chat items, tool calls, and the sub-agent tool calls spawned by
// the Task tool, plus the presentation filter applied before rendering.
package chat

import (
	"reflect"
	"time"
)

// =============================================================================
// ITEM KINDS
// =============================================================================

// ItemKind discriminates the variants of a ChatItem.
type ItemKind string

const (
	KindUser        ItemKind = "user"
	KindAssistant   ItemKind = "assistant"
	KindThinking    ItemKind = "thinking"
	KindToolCall    ItemKind = "tool_call"
	KindInterrupted ItemKind = "interrupted"
)

// =============================================================================
// TOOL STATUS
// =============================================================================

// ToolStatus tracks a tool invocation through its life. Transitions are
// monotonic (running -> waiting_for_approval -> success/error), except that
// interrupted can truncate any state.
type ToolStatus string

const (
	StatusRunning            ToolStatus = "running"
	StatusWaitingForApproval ToolStatus = "waiting_for_approval"
	StatusSuccess            ToolStatus = "success"
	StatusError              ToolStatus = "error"
	StatusInterrupted        ToolStatus = "interrupted"
)

// ToolNameTask is the tool that spawns and supervises sub-agents. Only Task
// tool calls carry SubagentTools.
const ToolNameTask = "Task"

// =============================================================================
// TIMELINE TYPES
// =============================================================================

// SubagentToolCall is a tool invocation made by a sub-agent, owned exclusively
// by its parent Task tool call. Its ID must never survive as a top-level entry
// in the filtered timeline.
type SubagentToolCall struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Input     map[string]string `json:"input,omitempty"`
	Status    ToolStatus        `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// ToolCall is a tool invocation and its outcome.
type ToolCall struct {
	Name             string             `json:"name"`
	Input            map[string]string  `json:"input,omitempty"`
	Status           ToolStatus         `json:"status"`
	Result           string             `json:"result,omitempty"`
	StructuredResult any                `json:"structuredResult,omitempty"`
	SubagentTools    []SubagentToolCall `json:"subagentTools,omitempty"`
}

// ChatItem is one timeline entry. Kind selects which payload field is set:
// Text for user/assistant/thinking, Tool for tool_call, neither for
// interrupted.
type ChatItem struct {
	ID        string    `json:"id"`
	Kind      ItemKind  `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Tool      *ToolCall `json:"tool,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Equal reports structural equality over ID and the kind payload.
// Timestamps do not participate.
func (c ChatItem) Equal(o ChatItem) bool {
	if c.ID != o.ID || c.Kind != o.Kind || c.Text != o.Text {
		return false
	}
	if (c.Tool == nil) != (o.Tool == nil) {
		return false
	}
	if c.Tool == nil {
		return true
	}
	return reflect.DeepEqual(*c.Tool, *o.Tool)
}

// Session is one conversation with the assistant, keyed by session ID and the
// working directory whose project folder holds its log. ChatItems is the
// canonical unfiltered sequence: it may still contain sub-agent tool ids at
// top level until FilterSubagentItems is applied.
type Session struct {
	SessionID string     `json:"sessionId"`
	Cwd       string     `json:"cwd"`
	ChatItems []ChatItem `json:"chatItems"`
}

// =============================================================================
// FILE UPDATE PAYLOAD
// =============================================================================

// FileUpdate carries a freshly parsed snapshot of one session's log: the full
// ordered item list plus the completed-tool id set and per-tool results keyed
// by tool use id. Re-applying the same payload is idempotent.
type FileUpdate struct {
	SessionID         string
	Cwd               string
	Items             []ChatItem
	CompletedToolIDs  map[string]struct{}
	ToolResults       map[string]string
	StructuredResults map[string]any
}

// =============================================================================
// COPY HELPERS
// =============================================================================

// CloneItems deep-copies a timeline so snapshots handed across goroutines
// never alias canonical state.
func CloneItems(items []ChatItem) []ChatItem {
	if items == nil {
		return nil
	}
	out := make([]ChatItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Tool != nil {
			tc := *it.Tool
			tc.Input = cloneStringMap(it.Tool.Input)
			if it.Tool.SubagentTools != nil {
				tc.SubagentTools = make([]SubagentToolCall, len(it.Tool.SubagentTools))
				for j, sub := range it.Tool.SubagentTools {
					tc.SubagentTools[j] = sub
					tc.SubagentTools[j].Input = cloneStringMap(sub.Input)
				}
			}
			out[i].Tool = &tc
		}
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
