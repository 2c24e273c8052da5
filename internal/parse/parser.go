package parse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/farouqaldori/claude-island/internal/chat"
)

const (
	// interruptedMarker prefixes the synthetic user text Claude Code writes
	// when the user cancels a turn.
	interruptedMarker = "[Request interrupted by user"

	scannerInitialBuf = 64 * 1024
	scannerMaxBuf     = 10 * 1024 * 1024
)

// =============================================================================
// PARSER
// =============================================================================

// Parser reconstructs chat timelines from the JSONL session logs under the
// Claude Code projects directory. It holds no per-session state: every call
// re-reads the log and derives a fresh snapshot.
type Parser struct {
	ProjectsDir string
}

// NewParser returns a parser rooted at projectsDir. An empty projectsDir
// falls back to ~/.claude/projects.
func NewParser(projectsDir string) *Parser {
	if projectsDir == "" {
		projectsDir = DefaultProjectsDir()
	}
	return &Parser{ProjectsDir: projectsDir}
}

// DefaultProjectsDir returns the standard Claude Code projects directory.
func DefaultProjectsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude/projects"
	}
	return filepath.Join(home, ".claude", "projects")
}

// EncodeCwd maps a working directory to its project folder name. Claude Code
// replaces every path separator with a dash, so /Users/x/app becomes
// -Users-x-app.
func EncodeCwd(cwd string) string {
	return strings.ReplaceAll(cwd, "/", "-")
}

// SessionPath returns the JSONL log path for a session.
func (p *Parser) SessionPath(cwd, sessionID string) string {
	return filepath.Join(p.ProjectsDir, EncodeCwd(cwd), sessionID+".jsonl")
}

// =============================================================================
// PUBLIC ACCESSORS
// =============================================================================

// ParseFullConversation returns the ordered canonical timeline for a session.
// A missing or unreadable log yields an empty slice.
func (p *Parser) ParseFullConversation(sessionID, cwd string) []chat.ChatItem {
	return p.parse(sessionID, cwd).items
}

// CompletedToolIDs returns the set of tool use ids that have received a
// tool_result in the log.
func (p *Parser) CompletedToolIDs(sessionID, cwd string) map[string]struct{} {
	return p.parse(sessionID, cwd).completed
}

// ToolResults returns the raw result text per completed tool use id.
func (p *Parser) ToolResults(sessionID, cwd string) map[string]string {
	return p.parse(sessionID, cwd).results
}

// StructuredResults returns the decoded tool-specific result payload per tool
// use id, where the log carried one.
func (p *Parser) StructuredResults(sessionID, cwd string) map[string]any {
	return p.parse(sessionID, cwd).structured
}

// =============================================================================
// PARSE STATE
// =============================================================================

type snapshot struct {
	items      []chat.ChatItem
	completed  map[string]struct{}
	results    map[string]string
	structured map[string]any
}

type subagentLoc struct {
	taskIdx int
	subIdx  int
}

type parseState struct {
	snap snapshot

	// topIndex maps a tool use id to its top-level KindToolCall item.
	topIndex map[string]int
	// subIndex maps a sidechain tool use id to its slot on the owning Task.
	subIndex map[string]subagentLoc
	// toolNames remembers tool names for structured result decoding.
	toolNames map[string]string

	// lastTaskIdx is the most recent Task tool call still running, or -1.
	// Sidechain tool uses attach to it.
	lastTaskIdx int

	lastTS time.Time
}

func newParseState() *parseState {
	return &parseState{
		snap: snapshot{
			items:      []chat.ChatItem{},
			completed:  map[string]struct{}{},
			results:    map[string]string{},
			structured: map[string]any{},
		},
		topIndex:    map[string]int{},
		subIndex:    map[string]subagentLoc{},
		toolNames:   map[string]string{},
		lastTaskIdx: -1,
	}
}

// =============================================================================
// CORE PARSE
// =============================================================================

func (p *Parser) parse(sessionID, cwd string) snapshot {
	st := newParseState()

	f, err := os.Open(p.SessionPath(cwd, sessionID))
	if err != nil {
		return st.snap
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, scannerInitialBuf), scannerMaxBuf)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		ev, err := ClassifyLine(line)
		if err != nil {
			// Malformed lines (partial writes, truncation) are skipped so a
			// log being appended to mid-write still parses.
			continue
		}

		switch {
		case ev.Assistant != nil:
			st.applyAssistant(ev.Assistant)
		case ev.User != nil:
			st.applyUser(ev.User)
		}
	}

	return st.snap
}

// -----------------------------------------------------------------------------
// Assistant events
// -----------------------------------------------------------------------------

func (st *parseState) applyAssistant(ev *AssistantEvent) {
	if ev.IsAPIErrorMessage {
		return
	}

	ts := st.eventTime(ev.Timestamp)
	textSeen := 0

	for _, block := range ev.Message.Content {
		if ev.IsSidechain {
			if block.Type == "tool_use" {
				st.addSubagentTool(block, ts)
			}
			continue
		}

		switch block.Type {
		case "text":
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}
			id := ev.UUID
			if textSeen > 0 {
				id = fmt.Sprintf("%s:%d", ev.UUID, textSeen)
			}
			textSeen++
			st.snap.items = append(st.snap.items, chat.ChatItem{
				ID:        id,
				Kind:      chat.KindAssistant,
				Text:      text,
				Timestamp: ts,
			})

		case "thinking":
			if strings.TrimSpace(block.Thinking) == "" {
				continue
			}
			st.snap.items = append(st.snap.items, chat.ChatItem{
				ID:        ev.UUID + ":thinking",
				Kind:      chat.KindThinking,
				Text:      block.Thinking,
				Timestamp: ts,
			})

		case "tool_use":
			st.addToolCall(block, ts)
		}
	}
}

func (st *parseState) addToolCall(block ContentBlock, ts time.Time) {
	if block.ID == "" {
		return
	}
	item := chat.ChatItem{
		ID:   block.ID,
		Kind: chat.KindToolCall,
		Tool: &chat.ToolCall{
			Name:   block.Name,
			Input:  flattenInput(block.Input),
			Status: chat.StatusRunning,
		},
		Timestamp: ts,
	}
	st.snap.items = append(st.snap.items, item)
	idx := len(st.snap.items) - 1
	st.topIndex[block.ID] = idx
	st.toolNames[block.ID] = block.Name

	if block.Name == chat.ToolNameTask {
		st.lastTaskIdx = idx
	}
}

// addSubagentTool records a sidechain tool use both as a SubagentToolCall on
// the owning Task and as a top-level item. The presentation filter removes the
// top-level copy; keeping both in canonical state preserves full ordering.
func (st *parseState) addSubagentTool(block ContentBlock, ts time.Time) {
	if block.ID == "" {
		return
	}
	st.toolNames[block.ID] = block.Name

	if st.lastTaskIdx >= 0 {
		task := st.snap.items[st.lastTaskIdx].Tool
		task.SubagentTools = append(task.SubagentTools, chat.SubagentToolCall{
			ID:        block.ID,
			Name:      block.Name,
			Input:     flattenInput(block.Input),
			Status:    chat.StatusRunning,
			Timestamp: ts,
		})
		st.subIndex[block.ID] = subagentLoc{
			taskIdx: st.lastTaskIdx,
			subIdx:  len(task.SubagentTools) - 1,
		}
	}

	st.snap.items = append(st.snap.items, chat.ChatItem{
		ID:   block.ID,
		Kind: chat.KindToolCall,
		Tool: &chat.ToolCall{
			Name:   block.Name,
			Input:  flattenInput(block.Input),
			Status: chat.StatusRunning,
		},
		Timestamp: ts,
	})
	st.topIndex[block.ID] = len(st.snap.items) - 1
}

// -----------------------------------------------------------------------------
// User events
// -----------------------------------------------------------------------------

func (st *parseState) applyUser(ev *UserEvent) {
	if ev.IsMeta || ev.IsCompactSummary || ev.IsVisibleInTranscriptOnly {
		return
	}

	ts := st.eventTime(ev.Timestamp)

	switch content := ev.Message.Content.(type) {
	case string:
		if !ev.IsSidechain {
			st.addUserText(ev.UUID, content, ts)
		}

	case []any:
		resultSeen := false
		for _, raw := range content {
			blockMap, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			data, err := json.Marshal(blockMap)
			if err != nil {
				continue
			}
			var block ContentBlock
			if err := json.Unmarshal(data, &block); err != nil {
				continue
			}

			switch block.Type {
			case "tool_result":
				st.applyToolResult(block, ev, !resultSeen)
				resultSeen = true
			case "text":
				if !ev.IsSidechain {
					st.addUserText(ev.UUID, block.Text, ts)
				}
			}
		}
	}
}

func (st *parseState) addUserText(uuid, text string, ts time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, interruptedMarker) {
		st.snap.items = append(st.snap.items, chat.ChatItem{
			ID:        uuid,
			Kind:      chat.KindInterrupted,
			Timestamp: ts,
		})
		st.interruptRunningTools()
		return
	}
	st.snap.items = append(st.snap.items, chat.ChatItem{
		ID:        uuid,
		Kind:      chat.KindUser,
		Text:      text,
		Timestamp: ts,
	})
}

func (st *parseState) applyToolResult(block ContentBlock, ev *UserEvent, first bool) {
	id := block.ToolUseID
	if id == "" {
		return
	}

	st.snap.completed[id] = struct{}{}
	status := chat.StatusSuccess
	if block.IsError {
		status = chat.StatusError
	}
	st.snap.results[id] = contentText(block.Content)

	if first && ev.ToolUseResult != nil {
		st.snap.structured[id] = DecodeStructuredResult(st.toolNames[id], ev.ToolUseResult)
	}

	if idx, ok := st.topIndex[id]; ok {
		tool := st.snap.items[idx].Tool
		tool.Status = status
		if st.toolNames[id] == chat.ToolNameTask && idx == st.lastTaskIdx {
			st.lastTaskIdx = -1
		}
	}
	if loc, ok := st.subIndex[id]; ok {
		st.snap.items[loc.taskIdx].Tool.SubagentTools[loc.subIdx].Status = status
	}
}

// interruptRunningTools truncates every still-running tool call, nested
// sub-agent entries included.
func (st *parseState) interruptRunningTools() {
	for i := range st.snap.items {
		tool := st.snap.items[i].Tool
		if tool == nil {
			continue
		}
		if tool.Status == chat.StatusRunning || tool.Status == chat.StatusWaitingForApproval {
			tool.Status = chat.StatusInterrupted
		}
		for j := range tool.SubagentTools {
			sub := &tool.SubagentTools[j]
			if sub.Status == chat.StatusRunning || sub.Status == chat.StatusWaitingForApproval {
				sub.Status = chat.StatusInterrupted
			}
		}
	}
	st.lastTaskIdx = -1
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// eventTime parses an RFC3339 timestamp, clamped so item timestamps never go
// backwards even when the log carries out-of-order clock readings.
func (st *parseState) eventTime(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil || ts.Before(st.lastTS) {
		return st.lastTS
	}
	st.lastTS = ts
	return ts
}

// flattenInput converts a tool_use input object into a flat string map.
// Non-string values keep their JSON encoding.
func flattenInput(input any) map[string]string {
	obj, ok := input.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			data, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprintf("%v", v)
				continue
			}
			out[k] = string(data)
		}
	}
	return out
}

// contentText extracts the visible text from a tool_result content value,
// which is either a plain string or an array of text blocks.
func contentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, raw := range c {
			blockMap, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if blockMap["type"] == "text" {
				if text, ok := blockMap["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
