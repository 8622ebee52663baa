// Package hook is the one-shot ingest mode: the host agent pipes one JSON
// record describing a built-in tool call it just performed, and vigilo maps
// it into a canonical ledger event.
package hook

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/project"
	"github.com/ppiankov/vigilo/internal/session"
)

// Run reads exactly one payload from r and appends the mapped event to the
// ledger. Unparseable input is a silent no-op: the hook must never disturb
// the host agent.
func Run(r io.Reader, ledgerPath string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.E(model.KindIO, err)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}

	var ev *model.Event
	if _, ok := payload["conversation_id"]; ok {
		ev = mapCursor(payload)
	} else {
		ev = mapClaude(payload)
	}
	if ev == nil {
		return nil
	}

	key, err := crypto.LoadConfigured()
	if err != nil {
		ledger.Sidelog().WithField("kind", model.KindCrypto).WithError(err).
			Warn("encryption key rejected, hook event stays plaintext")
		key = nil
	}
	defer key.Zeroize()
	if err := crypto.SealEvent(key, ev); err != nil {
		ledger.Sidelog().WithField("kind", model.KindCrypto).
			WithField("event_id", ev.ID).WithError(err).
			Error("hook event encryption failed")
		crypto.Strip(ev)
	}

	if err := ledger.Append(ev, ledgerPath); err != nil {
		ledger.Sidelog().WithField("kind", model.KindLedger).WithError(err).
			Error("hook ledger append failed")
	}
	return nil
}

func str(payload map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := payload[key]; ok {
		json.Unmarshal(raw, &s)
	}
	return s
}

// sessionID resolves the event's session: adopt the live MCP server's id
// from the registry artifact when the recorded process checks out, else
// derive a stable id from the grouping key, else mint a fresh one.
func sessionID(groupKey string) string {
	if id, ok := session.Adopt(); ok {
		return id
	}
	if groupKey != "" {
		return model.StableID(groupKey)
	}
	return model.NewID()
}

// isOwnTool reports whether the host payload describes a call that already
// went through vigilo's MCP server and is therefore logged once.
func isOwnTool(name string) bool {
	if strings.HasPrefix(name, "mcp__vigilo__") {
		return true
	}
	return model.IsCatalogTool(strings.TrimPrefix(name, "MCP:"))
}

func probe(dir string) model.ProjectContext {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return project.NewProber().Probe(ctx, dir)
}

func resolveTag(pc model.ProjectContext) string {
	if tag := model.ConfigOrEnv("VIGILO_TAG", "TAG"); tag != "" {
		return tag
	}
	return pc.Branch
}

// storeResponse gates persisting full tool responses, which can be huge
// (base64 images, whole file reads). Off unless HOOK_STORE_RESPONSE says so.
func storeResponse() bool {
	v := strings.ToLower(model.ConfigOrEnv("VIGILO_HOOK_STORE_RESPONSE", "HOOK_STORE_RESPONSE"))
	return v == "true" || v == "1" || v == "yes"
}

// resolveDir picks the directory a host tool call operated in.
func resolveDir(tool string, args map[string]json.RawMessage, cwd string) string {
	var pathArg string
	switch tool {
	case "Read", "Edit", "Write", "MultiEdit", "NotebookEdit":
		pathArg = rawStr(args, "file_path")
	case "Glob", "Grep":
		pathArg = rawStr(args, "path")
	default:
		if pathArg = rawStr(args, "file_path"); pathArg == "" {
			pathArg = rawStr(args, "path")
		}
	}
	return project.DirFor(pathArg, cwd)
}

func rawStr(args map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := args[key]; ok {
		json.Unmarshal(raw, &s)
	}
	return s
}

func rawObj(payload map[string]json.RawMessage, key string) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if raw, ok := payload[key]; ok {
		json.Unmarshal(raw, &out)
	}
	return out
}

func marshalArgs(args map[string]json.RawMessage) json.RawMessage {
	data, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
