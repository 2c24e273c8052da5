package parse

import "encoding/json"

// Tool names as they appear in tool_use blocks.
const (
	ToolNameBash     = "Bash"
	ToolNameRead     = "Read"
	ToolNameWrite    = "Write"
	ToolNameEdit     = "Edit"
	ToolNameGrep     = "Grep"
	ToolNameGlob     = "Glob"
	ToolNameTask     = "Task"
	ToolNameWebFetch = "WebFetch"
)

// BashResult contains metadata from a Bash tool execution.
type BashResult struct {
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Interrupted bool   `json:"interrupted"`
}

// EditResult contains metadata from an Edit tool execution.
type EditResult struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll"`
}

// WriteResult contains metadata from a Write tool execution.
type WriteResult struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}

// GrepResult contains metadata from a Grep tool execution.
type GrepResult struct {
	Mode      string   `json:"mode"`
	NumFiles  int      `json:"numFiles"`
	NumLines  int      `json:"numLines,omitempty"`
	Filenames []string `json:"filenames"`
}

// GlobResult contains metadata from a Glob tool execution.
type GlobResult struct {
	NumFiles  int      `json:"numFiles"`
	Filenames []string `json:"filenames"`
	Truncated bool     `json:"truncated"`
}

// TaskResult contains metadata from a Task (sub-agent) tool execution.
type TaskResult struct {
	AgentID           string `json:"agentId"`
	Status            string `json:"status"`
	Prompt            string `json:"prompt"`
	TotalDurationMs   int    `json:"totalDurationMs"`
	TotalTokens       int    `json:"totalTokens"`
	TotalToolUseCount int    `json:"totalToolUseCount"`
}

// WebFetchResult contains metadata from a WebFetch tool execution.
type WebFetchResult struct {
	URL        string `json:"url"`
	Code       int    `json:"code"`
	Bytes      int    `json:"bytes"`
	DurationMs int    `json:"durationMs"`
}

// DecodeStructuredResult converts the raw toolUseResult map attached to a
// tool_result carrier event into the tool-specific payload type. Tools without
// a dedicated type keep the raw map so nothing is lost.
func DecodeStructuredResult(toolName string, raw map[string]any) any {
	if raw == nil {
		return nil
	}

	var target any
	switch toolName {
	case ToolNameBash:
		target = &BashResult{}
	case ToolNameEdit:
		target = &EditResult{}
	case ToolNameWrite:
		target = &WriteResult{}
	case ToolNameGrep:
		target = &GrepResult{}
	case ToolNameGlob:
		target = &GlobResult{}
	case ToolNameTask:
		target = &TaskResult{}
	case ToolNameWebFetch:
		target = &WebFetchResult{}
	default:
		return raw
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return raw
	}
	if err := json.Unmarshal(data, target); err != nil {
		return raw
	}
	return target
}
