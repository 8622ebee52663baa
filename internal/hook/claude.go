package hook

import (
	"encoding/json"

	"github.com/ppiankov/vigilo/internal/model"
)

// mapClaude converts a Claude Code PostToolUse payload into a ledger event.
// Returns nil when the record duplicates a catalog call.
func mapClaude(payload map[string]json.RawMessage) *model.Event {
	toolName := str(payload, "tool_name")
	if toolName == "" {
		toolName = "unknown"
	}
	if isOwnTool(toolName) {
		return nil
	}

	args := rawObj(payload, "tool_input")
	// Full file content adds no observability value and can be tens of KB.
	if toolName == "Write" || toolName == "write_file" {
		delete(args, "content")
	}

	outcome := claudeOutcome(payload)
	cwd := str(payload, "cwd")
	if cwd == "" {
		cwd = "."
	}

	dir := resolveDir(toolName, args, cwd)
	pc := probe(dir)

	// transcript_path is the same file for the whole conversation — the most
	// stable grouping key when no live server artifact is adoptable.
	groupKey := str(payload, "transcript_path")
	if groupKey == "" {
		groupKey = str(payload, "session_id")
	}

	toolUseID := str(payload, "tool_use_id")
	meta := readTranscriptMeta(str(payload, "transcript_path"), toolUseID)

	ev := &model.Event{
		ID:         model.NewID(),
		Timestamp:  model.Now(),
		SessionID:  sessionID(groupKey),
		Server:     model.ServerClaudeCode,
		Tool:       toolName,
		Arguments:  marshalArgs(args),
		Outcome:    outcome,
		DurationUS: meta.DurationUS,
		Risk:       model.Classify(toolName),
		Project:    pc,
		Tag:        resolveTag(pc),
		Diff:       editDiff(toolName, args),

		Model:            meta.Model,
		InputTokens:      meta.InputTokens,
		OutputTokens:     meta.OutputTokens,
		CacheReadTokens:  meta.CacheReadTokens,
		CacheWriteTokens: meta.CacheWriteTokens,
		StopReason:       meta.StopReason,
		ServiceTier:      meta.ServiceTier,

		PermissionMode: str(payload, "permission_mode"),
		ToolUseID:      toolUseID,
	}
	return ev
}

func claudeOutcome(payload map[string]json.RawMessage) model.Outcome {
	resp := payload["tool_response"]

	var flags struct {
		IsError *bool `json:"is_error"`
		Success *bool `json:"success"`
	}
	json.Unmarshal(resp, &flags)
	isError := (flags.IsError != nil && *flags.IsError) ||
		(flags.Success != nil && !*flags.Success)

	if isError {
		return model.Errf("error", extractErrorMessage(resp))
	}
	if storeResponse() && len(resp) > 0 {
		return model.OK(resp)
	}
	return model.OK(nil)
}

func extractErrorMessage(resp json.RawMessage) string {
	var body struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Error string `json:"error"`
	}
	if json.Unmarshal(resp, &body) == nil {
		if len(body.Content) > 0 && body.Content[0].Text != "" {
			return body.Content[0].Text
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "error"
}

// editDiff diffs the old/new strings Edit-class tools carry directly.
func editDiff(tool string, args map[string]json.RawMessage) string {
	if tool != "Edit" && tool != "MultiEdit" {
		return ""
	}
	oldStr := rawStr(args, "old_string")
	newStr := rawStr(args, "new_string")
	if oldStr == "" && newStr == "" {
		return ""
	}
	return model.UnifiedDiff(oldStr, newStr)
}
