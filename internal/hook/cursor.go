package hook

import (
	"encoding/json"
	"strings"

	"github.com/ppiankov/vigilo/internal/cursor"
	"github.com/ppiankov/vigilo/internal/model"
)

// mapCursor converts a Cursor hook payload into a ledger event. Two shapes
// arrive here: lifecycle hooks (hook_event_name set) and postToolUse
// records with native tool names. Returns nil for events with no tool data.
func mapCursor(payload map[string]json.RawMessage) *model.Event {
	hookEvent := str(payload, "hook_event_name")
	if hookEvent == "" {
		hookEvent = "postToolUse"
	}
	if hookEvent == "stop" || hookEvent == "beforeSubmitPrompt" {
		return nil
	}

	convID := str(payload, "conversation_id")
	cwd := str(payload, "cwd")
	if cwd == "" {
		var roots []string
		json.Unmarshal(payload["workspace_roots"], &roots)
		if len(roots) > 0 {
			cwd = roots[0]
		}
	}
	if cwd == "" {
		cwd = "."
	}

	var toolName string
	var args map[string]json.RawMessage
	var risk model.Risk
	var diff string

	switch hookEvent {
	case "beforeShellExecution":
		toolName = "Bash"
		args = map[string]json.RawMessage{"command": payload["command"]}
		risk = model.RiskExec

	case "afterFileEdit":
		toolName = "Edit"
		args = map[string]json.RawMessage{"file_path": payload["file_path"]}
		risk = model.RiskWrite
		diff = cursorEditDiff(payload)

	case "beforeReadFile":
		toolName = "Read"
		args = map[string]json.RawMessage{"file_path": payload["file_path"]}
		risk = model.RiskRead

	case "beforeMCPExecution":
		toolName = str(payload, "tool_name")
		if toolName == "" {
			toolName = "unknown"
		}
		if isOwnTool(toolName) {
			return nil
		}
		args = rawObj(payload, "tool_input")
		risk = model.Classify(toolName)

	case "PostToolUse", "postToolUse":
		raw := str(payload, "tool_name")
		if raw == "" {
			raw = "unknown"
		}
		if isOwnTool(raw) {
			return nil
		}
		tool := strings.TrimPrefix(raw, "MCP:")
		switch tool {
		case "Shell":
			tool = "Bash"
		case "Write":
			tool = "Edit"
		}
		toolName = tool
		args = rawObj(payload, "tool_input")
		if len(args) == 0 {
			args = rawObj(payload, "arguments")
		}
		delete(args, "content")
		risk = model.Classify(tool)

	default:
		// Unknown future Cursor hook — log as-is.
		toolName = hookEvent
		args = payload
		risk = model.RiskUnknown
	}

	dir := resolveDir(toolName, args, cwd)
	pc := probe(dir)

	// Cursor 2.4+ postToolUse carries duration in ms.
	var durationMS float64
	json.Unmarshal(payload["duration"], &durationMS)

	ev := &model.Event{
		ID:         model.NewID(),
		Timestamp:  model.Now(),
		SessionID:  sessionID(convID),
		Server:     model.ServerCursor,
		Tool:       toolName,
		Arguments:  marshalArgs(args),
		Outcome:    model.OK(nil),
		DurationUS: uint64(durationMS * 1000),
		Risk:       risk,
		Project:    pc,
		Tag:        resolveTag(pc),
		Diff:       diff,

		Model: cursorModel(payload, convID),

		ToolUseID:     str(payload, "tool_use_id"),
		CursorVersion: str(payload, "cursor_version"),
		GenerationID:  str(payload, "generation_id"),
	}
	return ev
}

// cursorModel resolves the model name: the payload's exact per-request
// value, then the conversation's lastUsedModel from Cursor's local store,
// then the global default.
func cursorModel(payload map[string]json.RawMessage, convID string) string {
	m := str(payload, "model")
	if m == "" {
		m = cursor.ModelForConversation(convID)
	}
	if m == "" {
		m = cursor.DefaultModel()
	}
	return cursor.NormalizeModel(m)
}

func cursorEditDiff(payload map[string]json.RawMessage) string {
	var edits []struct {
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	}
	json.Unmarshal(payload["edits"], &edits)
	var sb strings.Builder
	for _, e := range edits {
		sb.WriteString(model.UnifiedDiff(e.OldString, e.NewString))
	}
	return sb.String()
}
