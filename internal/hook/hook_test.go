package hook

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VIGILO_ENCRYPTION_KEY", "")
	t.Setenv("VIGILO_TAG", "")
	return home
}

func ledgerEvents(t *testing.T, path string) []model.Event {
	t.Helper()
	r := &ledger.Reader{Path: path}
	events, err := r.Read(ledger.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func runPayload(t *testing.T, path string, payload map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(strings.NewReader(string(data)), path); err != nil {
		t.Fatal(err)
	}
}

func TestClaudePayloadAppendsEvent(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	runPayload(t, path, map[string]any{
		"tool_name":  "Read",
		"tool_input": map[string]any{"file_path": "/tmp/a.txt"},
		"tool_response": map[string]any{
			"success": true,
		},
		"cwd":             "/tmp",
		"session_id":      "conv-123",
		"permission_mode": "auto",
		"tool_use_id":     "tu_9",
	})

	events := ledgerEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Server != model.ServerClaudeCode {
		t.Fatalf("server %q", ev.Server)
	}
	if ev.Tool != "Read" || ev.Risk != model.RiskRead {
		t.Fatalf("tool %q risk %q", ev.Tool, ev.Risk)
	}
	if ev.PermissionMode != "auto" || ev.ToolUseID != "tu_9" {
		t.Fatalf("hook context lost: %+v", ev)
	}
	if ev.Outcome.IsError() {
		t.Fatal("successful response should be ok")
	}
}

func TestCatalogToolIsDeduped(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	for _, name := range []string{"read_file", "mcp__vigilo__read_file", "MCP:write_file"} {
		runPayload(t, path, map[string]any{
			"tool_name":  name,
			"tool_input": map[string]any{"path": "/tmp/a"},
			"cwd":        "/tmp",
		})
	}

	if events := ledgerEvents(t, path); len(events) != 0 {
		t.Fatalf("catalog tools must be dropped, got %d events", len(events))
	}
}

func TestClaudeErrorResponse(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	runPayload(t, path, map[string]any{
		"tool_name":  "Bash",
		"tool_input": map[string]any{"command": "false"},
		"tool_response": map[string]any{
			"is_error": true,
			"content":  []map[string]any{{"text": "command failed"}},
		},
		"cwd": "/tmp",
	})

	events := ledgerEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].Outcome.IsError() {
		t.Fatal("expected error outcome")
	}
	if events[0].Outcome.Message != "command failed" {
		t.Fatalf("message %q", events[0].Outcome.Message)
	}
	if events[0].Risk != model.RiskExec {
		t.Fatalf("risk %q", events[0].Risk)
	}
}

func TestWriteContentStripped(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	runPayload(t, path, map[string]any{
		"tool_name": "Write",
		"tool_input": map[string]any{
			"file_path": "/tmp/big.txt",
			"content":   strings.Repeat("X", 5000),
		},
		"cwd": "/tmp",
	})

	events := ledgerEvents(t, path)
	if len(events) != 1 {
		t.Fatal("expected 1 event")
	}
	if strings.Contains(string(events[0].Arguments), "XXXX") {
		t.Fatal("file content must be stripped from arguments")
	}
	if !strings.Contains(string(events[0].Arguments), "/tmp/big.txt") {
		t.Fatal("file path must survive")
	}
}

func TestEditDiffComputed(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	runPayload(t, path, map[string]any{
		"tool_name": "Edit",
		"tool_input": map[string]any{
			"file_path":  "/tmp/f.go",
			"old_string": "hello\n",
			"new_string": "hello\nworld\n",
		},
		"cwd": "/tmp",
	})

	events := ledgerEvents(t, path)
	if len(events) != 1 {
		t.Fatal("expected 1 event")
	}
	if !strings.Contains(events[0].Diff, "+world") {
		t.Fatalf("diff %q", events[0].Diff)
	}
}

func TestStableSessionGrouping(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	payload := map[string]any{
		"tool_name":       "Read",
		"tool_input":      map[string]any{"file_path": "/tmp/a"},
		"cwd":             "/tmp",
		"transcript_path": "/tmp/transcript.jsonl",
	}
	runPayload(t, path, payload)
	runPayload(t, path, payload)

	events := ledgerEvents(t, path)
	if len(events) != 2 {
		t.Fatal("expected 2 events")
	}
	if events[0].SessionID != events[1].SessionID {
		t.Fatal("same transcript must share a session id")
	}
}

func TestCursorShellLifecycle(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	runPayload(t, path, map[string]any{
		"conversation_id": "conv-42",
		"hook_event_name": "beforeShellExecution",
		"command":         "make build",
		"cwd":             "/tmp",
	})

	events := ledgerEvents(t, path)
	if len(events) != 1 {
		t.Fatal("expected 1 event")
	}
	ev := events[0]
	if ev.Server != model.ServerCursor {
		t.Fatalf("server %q", ev.Server)
	}
	if ev.Tool != "Bash" || ev.Risk != model.RiskExec {
		t.Fatalf("tool %q risk %q", ev.Tool, ev.Risk)
	}
	if !strings.Contains(string(ev.Arguments), "make build") {
		t.Fatalf("arguments %s", ev.Arguments)
	}
}

func TestCursorStopEventsSkipped(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	for _, name := range []string{"stop", "beforeSubmitPrompt"} {
		runPayload(t, path, map[string]any{
			"conversation_id": "conv-42",
			"hook_event_name": name,
		})
	}
	if events := ledgerEvents(t, path); len(events) != 0 {
		t.Fatalf("lifecycle noise must be skipped, got %d", len(events))
	}
}

func TestCursorPostToolUseNormalizesNames(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	runPayload(t, path, map[string]any{
		"conversation_id": "conv-42",
		"hook_event_name": "postToolUse",
		"tool_name":       "Shell",
		"tool_input":      map[string]any{"command": "ls"},
		"duration":        12.5,
		"cursor_version":  "2.4.1",
	})

	events := ledgerEvents(t, path)
	if len(events) != 1 {
		t.Fatal("expected 1 event")
	}
	ev := events[0]
	if ev.Tool != "Bash" {
		t.Fatalf("tool %q", ev.Tool)
	}
	if ev.DurationUS != 12500 {
		t.Fatalf("duration %d", ev.DurationUS)
	}
	if ev.CursorVersion != "2.4.1" {
		t.Fatalf("cursor version %q", ev.CursorVersion)
	}
}

func TestGarbageInputIsSilentNoop(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	if err := Run(strings.NewReader("not json at all"), path); err != nil {
		t.Fatalf("garbage must not error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("no ledger should be created for garbage input")
	}
}

func TestHookEncryptsWhenKeyed(t *testing.T) {
	home := setupHome(t)
	path := filepath.Join(home, "events.jsonl")

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	t.Setenv("VIGILO_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(raw))

	runPayload(t, path, map[string]any{
		"tool_name":  "Read",
		"tool_input": map[string]any{"file_path": "/tmp/secret-path.txt"},
		"cwd":        "/tmp",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret-path.txt") {
		t.Fatal("plaintext leaked into the keyed ledger")
	}
	if !strings.Contains(string(data), `"__enc":"v1"`) {
		t.Fatal("expected an encryption envelope")
	}
}
