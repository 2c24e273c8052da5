package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/farouqaldori/claude-island/internal/chat"
)

const (
	testCwd     = "/Users/test/project"
	testSession = "11111111-2222-3333-4444-555555555555"
)

func writeSessionLog(t *testing.T, projectsDir string, lines ...string) {
	t.Helper()
	dir := filepath.Join(projectsDir, EncodeCwd(testCwd))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, testSession+".jsonl")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func userLine(uuid, text string) string {
	return fmt.Sprintf(`{"type":"user","uuid":%q,"timestamp":"2025-06-01T10:00:00Z","sessionId":%q,"cwd":%q,"message":{"role":"user","content":%q}}`,
		uuid, testSession, testCwd, text)
}

func assistantTextLine(uuid, text string) string {
	return fmt.Sprintf(`{"type":"assistant","uuid":%q,"timestamp":"2025-06-01T10:00:01Z","sessionId":%q,"message":{"model":"m","id":"msg","role":"assistant","content":[{"type":"text","text":%q}]}}`,
		uuid, testSession, text)
}

func toolUseLine(uuid, toolID, name, inputJSON string) string {
	return fmt.Sprintf(`{"type":"assistant","uuid":%q,"timestamp":"2025-06-01T10:00:02Z","sessionId":%q,"message":{"model":"m","id":"msg","role":"assistant","content":[{"type":"tool_use","id":%q,"name":%q,"input":%s}]}}`,
		uuid, testSession, toolID, name, inputJSON)
}

func sidechainToolUseLine(uuid, toolID, name string) string {
	return fmt.Sprintf(`{"type":"assistant","uuid":%q,"timestamp":"2025-06-01T10:00:03Z","sessionId":%q,"isSidechain":true,"message":{"model":"m","id":"msg","role":"assistant","content":[{"type":"tool_use","id":%q,"name":%q,"input":{}}]}}`,
		uuid, testSession, toolID, name)
}

func toolResultLine(uuid, toolID, result string, isError bool) string {
	return fmt.Sprintf(`{"type":"user","uuid":%q,"timestamp":"2025-06-01T10:00:04Z","sessionId":%q,"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":%q,"content":%q,"is_error":%t}]}}`,
		uuid, testSession, toolID, result, isError)
}

func TestParseMissingLogIsEmpty(t *testing.T) {
	p := NewParser(t.TempDir())

	items := p.ParseFullConversation(testSession, testCwd)
	if len(items) != 0 {
		t.Fatalf("expected empty timeline, got %d items", len(items))
	}
	if ids := p.CompletedToolIDs(testSession, testCwd); len(ids) != 0 {
		t.Fatalf("expected no completed ids, got %d", len(ids))
	}
}

func TestParseUserAndAssistantText(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		userLine("u1", "hello"),
		assistantTextLine("a1", "hi there"),
	)

	p := NewParser(dir)
	items := p.ParseFullConversation(testSession, testCwd)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Kind != chat.KindUser || items[0].Text != "hello" {
		t.Errorf("item 0 = %+v, want user hello", items[0])
	}
	if items[1].Kind != chat.KindAssistant || items[1].Text != "hi there" {
		t.Errorf("item 1 = %+v, want assistant hi there", items[1])
	}
	if items[0].ID != "u1" || items[1].ID != "a1" {
		t.Errorf("ids = %q, %q, want u1, a1", items[0].ID, items[1].ID)
	}
}

func TestParseToolCallLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		toolUseLine("a1", "tool-1", "Bash", `{"command":"ls","timeout":5000}`),
		toolResultLine("u1", "tool-1", "file.txt", false),
		toolUseLine("a2", "tool-2", "Bash", `{"command":"false"}`),
		toolResultLine("u2", "tool-2", "exit 1", true),
		toolUseLine("a3", "tool-3", "Read", `{"file_path":"/x"}`),
	)

	p := NewParser(dir)
	items := p.ParseFullConversation(testSession, testCwd)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0].Tool.Status != chat.StatusSuccess {
		t.Errorf("tool-1 status = %s, want success", items[0].Tool.Status)
	}
	if items[0].Tool.Input["command"] != "ls" {
		t.Errorf("tool-1 command = %q", items[0].Tool.Input["command"])
	}
	if items[0].Tool.Input["timeout"] != "5000" {
		t.Errorf("tool-1 timeout = %q, want JSON-encoded 5000", items[0].Tool.Input["timeout"])
	}
	if items[1].Tool.Status != chat.StatusError {
		t.Errorf("tool-2 status = %s, want error", items[1].Tool.Status)
	}
	if items[2].Tool.Status != chat.StatusRunning {
		t.Errorf("tool-3 status = %s, want running", items[2].Tool.Status)
	}

	completed := p.CompletedToolIDs(testSession, testCwd)
	if _, ok := completed["tool-1"]; !ok {
		t.Error("tool-1 not in completed set")
	}
	if _, ok := completed["tool-3"]; ok {
		t.Error("tool-3 should not be completed")
	}

	results := p.ToolResults(testSession, testCwd)
	if results["tool-1"] != "file.txt" {
		t.Errorf("tool-1 result = %q", results["tool-1"])
	}
	if results["tool-2"] != "exit 1" {
		t.Errorf("tool-2 result = %q", results["tool-2"])
	}
}

func TestParseSubagentAttribution(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		toolUseLine("a1", "task-1", "Task", `{"prompt":"explore"}`),
		sidechainToolUseLine("s1", "sub-1", "Grep"),
		sidechainToolUseLine("s2", "sub-2", "Read"),
		toolResultLine("u1", "sub-1", "matches", false),
	)

	p := NewParser(dir)
	items := p.ParseFullConversation(testSession, testCwd)

	// Canonical state holds the Task plus both sub-agent tools at top level.
	if len(items) != 3 {
		t.Fatalf("expected 3 canonical items, got %d", len(items))
	}

	task := items[0].Tool
	if len(task.SubagentTools) != 2 {
		t.Fatalf("expected 2 subagent tools on Task, got %d", len(task.SubagentTools))
	}
	if task.SubagentTools[0].ID != "sub-1" || task.SubagentTools[1].ID != "sub-2" {
		t.Errorf("subagent ids = %q, %q", task.SubagentTools[0].ID, task.SubagentTools[1].ID)
	}
	if task.SubagentTools[0].Status != chat.StatusSuccess {
		t.Errorf("sub-1 status = %s, want success", task.SubagentTools[0].Status)
	}
	if task.SubagentTools[1].Status != chat.StatusRunning {
		t.Errorf("sub-2 status = %s, want running", task.SubagentTools[1].Status)
	}

	// After filtering, only the Task survives at top level.
	filtered := chat.FilterSubagentItems(items)
	if len(filtered) != 1 || filtered[0].ID != "task-1" {
		t.Fatalf("filtered = %d items, want just the Task", len(filtered))
	}
}

func TestParseSidechainAfterTaskCompletes(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		toolUseLine("a1", "task-1", "Task", `{"prompt":"explore"}`),
		toolResultLine("u1", "task-1", "done", false),
		sidechainToolUseLine("s1", "sub-1", "Grep"),
	)

	p := NewParser(dir)
	items := p.ParseFullConversation(testSession, testCwd)

	// With no running Task, the sidechain tool only appears at top level.
	if len(items[0].Tool.SubagentTools) != 0 {
		t.Errorf("completed Task gained %d subagent tools", len(items[0].Tool.SubagentTools))
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestParseInterrupted(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		toolUseLine("a1", "tool-1", "Bash", `{"command":"sleep 60"}`),
		userLine("u1", "[Request interrupted by user]"),
	)

	p := NewParser(dir)
	items := p.ParseFullConversation(testSession, testCwd)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Tool.Status != chat.StatusInterrupted {
		t.Errorf("tool status = %s, want interrupted", items[0].Tool.Status)
	}
	if items[1].Kind != chat.KindInterrupted {
		t.Errorf("item 1 kind = %s, want interrupted", items[1].Kind)
	}
}

func TestParseSkipsMetaAndMalformed(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		`{"type":"user","uuid":"m1","timestamp":"2025-06-01T10:00:00Z","isMeta":true,"message":{"role":"user","content":"internal"}}`,
		`{not valid json`,
		`{"type":"summary","summary":"compacted","leafUuid":"x"}`,
		userLine("u1", "real message"),
	)

	p := NewParser(dir)
	items := p.ParseFullConversation(testSession, testCwd)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Text != "real message" {
		t.Errorf("item text = %q", items[0].Text)
	}
}

func TestParseStructuredResult(t *testing.T) {
	dir := t.TempDir()
	resultLine := fmt.Sprintf(`{"type":"user","uuid":"u1","timestamp":"2025-06-01T10:00:04Z","sessionId":%q,"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tool-1","content":"out","is_error":false}]},"toolUseResult":{"stdout":"out","stderr":"","interrupted":false}}`,
		testSession)
	writeSessionLog(t, dir,
		toolUseLine("a1", "tool-1", "Bash", `{"command":"echo out"}`),
		resultLine,
	)

	p := NewParser(dir)
	structured := p.StructuredResults(testSession, testCwd)

	bash, ok := structured["tool-1"].(*BashResult)
	if !ok {
		t.Fatalf("structured result = %T, want *BashResult", structured["tool-1"])
	}
	if bash.Stdout != "out" {
		t.Errorf("stdout = %q, want out", bash.Stdout)
	}
}

func TestParseRepeatableAndReadOnly(t *testing.T) {
	dir := t.TempDir()
	writeSessionLog(t, dir,
		userLine("u1", "hello"),
		toolUseLine("a1", "tool-1", "Bash", `{"command":"ls"}`),
		toolResultLine("u2", "tool-1", "ok", false),
	)

	p := NewParser(dir)
	first := p.ParseFullConversation(testSession, testCwd)
	second := p.ParseFullConversation(testSession, testCwd)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("item %d differs between parses", i)
		}
	}
}

func TestEncodeCwd(t *testing.T) {
	if got := EncodeCwd("/Users/x/app"); got != "-Users-x-app" {
		t.Errorf("EncodeCwd = %q, want -Users-x-app", got)
	}
}
