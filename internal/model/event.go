// Package model defines the event schema shared by the capture and read
// sides, the risk classification, and the vigilo config directory layout.
package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Server identifiers recorded in the event `server` field.
const (
	ServerVigilo     = "vigilo"
	ServerClaudeCode = "claude-code"
	ServerCursor     = "cursor"
)

// Event is one ledger record, one line of JSON.
type Event struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Server    string          `json:"server"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Outcome   Outcome         `json:"outcome"`
	DurationUS uint64         `json:"duration_us"`
	Risk      Risk            `json:"risk"`
	Project   ProjectContext  `json:"project"`
	Tag       string          `json:"tag,omitempty"`
	Diff      string          `json:"diff,omitempty"`
	TimedOut  bool            `json:"timed_out,omitempty"`

	// Token and model metadata — populated by the hook path only.
	Model            string `json:"model,omitempty"`
	InputTokens      uint64 `json:"input_tokens,omitempty"`
	OutputTokens     uint64 `json:"output_tokens,omitempty"`
	CacheReadTokens  uint64 `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens uint64 `json:"cache_write_tokens,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
	ServiceTier      string `json:"service_tier,omitempty"`

	// Claude Code hook context.
	PermissionMode string `json:"permission_mode,omitempty"`
	ToolUseID      string `json:"tool_use_id,omitempty"`

	// Cursor hook metadata.
	CursorVersion string `json:"cursor_version,omitempty"`
	GenerationID  string `json:"generation_id,omitempty"`
}

// Outcome is the tagged result of a tool call.
type Outcome struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// OK wraps a result subtree in a success outcome.
func OK(result json.RawMessage) Outcome {
	if result == nil {
		result = json.RawMessage("null")
	}
	return Outcome{Status: "ok", Result: result}
}

// Errf builds an error outcome with a stable code.
func Errf(code, message string) Outcome {
	return Outcome{Status: "error", Code: code, Message: message}
}

// IsError reports whether the outcome carries an error status.
func (o Outcome) IsError() bool { return o.Status == "error" }

// ProjectContext is the git context probed for the event's working directory.
// Any field may be empty if probing failed.
type ProjectContext struct {
	Root   string `json:"root,omitempty"`
	Name   string `json:"name,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Dirty  bool   `json:"dirty"`
}

// Risk is the coarse side-effect class of a tool.
type Risk string

const (
	RiskRead    Risk = "read"
	RiskWrite   Risk = "write"
	RiskExec    Risk = "exec"
	RiskUnknown Risk = "unknown"
)

// CatalogTool pairs a vigilo MCP tool name with its risk label.
type CatalogTool struct {
	Name string
	Risk Risk
}

// Catalog is the single source of truth: vigilo MCP tool name → risk level.
// Both IsCatalogTool and the vigilo branch of Classify derive from it.
var Catalog = []CatalogTool{
	{"read_file", RiskRead},
	{"write_file", RiskWrite},
	{"list_directory", RiskRead},
	{"create_directory", RiskWrite},
	{"delete_file", RiskWrite},
	{"move_file", RiskWrite},
	{"search_files", RiskRead},
	{"run_command", RiskExec},
	{"get_file_info", RiskRead},
	{"patch_file", RiskWrite},
	{"git_status", RiskRead},
	{"git_diff", RiskRead},
	{"git_log", RiskRead},
	{"git_commit", RiskWrite},
}

// IsCatalogTool reports whether name is one of vigilo's own MCP tools.
func IsCatalogTool(name string) bool {
	for _, t := range Catalog {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Classify maps a tool name — vigilo's own or a host agent builtin — to a
// risk level. An "MCP:" prefix (Cursor's wrapping) is stripped first.
func Classify(tool string) Risk {
	tool = strings.TrimPrefix(tool, "MCP:")

	for _, t := range Catalog {
		if t.Name == tool {
			return t.Risk
		}
	}

	switch tool {
	case "Bash", "Shell":
		return RiskExec
	case "Read", "Glob", "Grep", "WebFetch", "WebSearch", "Task", "TaskCreate",
		"TaskUpdate", "TaskGet", "TaskList", "TaskOutput", "EnterPlanMode",
		"ExitPlanMode", "AskUserQuestion", "PostToolUse", "postToolUse":
		return RiskRead
	case "Write", "Edit", "MultiEdit", "NotebookEdit":
		return RiskWrite
	}
	return RiskUnknown
}

// timestampLayout is RFC 3339 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Now returns the current UTC wall clock in ledger timestamp format.
func Now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// ParseTimestamp parses a ledger timestamp back into a time.Time.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Parse(timestampLayout, ts)
	}
	return t, nil
}

// NewID returns a fresh 128-bit random identifier.
func NewID() string {
	return uuid.NewString()
}

// sessionNamespace is the fixed namespace for deriving stable session IDs
// via UUID v5. Changing it would break session grouping for new entries.
var sessionNamespace = uuid.UUID{
	0xa1, 0xb2, 0xc3, 0xd4, 0xe5, 0xf6, 0x47, 0x08,
	0x89, 0xab, 0xcd, 0xef, 0x01, 0x23, 0x45, 0x67,
}

// StableID derives a deterministic session id from any string (transcript
// path, conversation id) so repeated hook invocations group together.
func StableID(s string) string {
	return uuid.NewSHA1(sessionNamespace, []byte(s)).String()
}
