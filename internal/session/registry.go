// Package session owns the on-disk session handoff between the MCP server
// process and sibling hook invocations, and the read-side correlator that
// folds raw session ids into logical sessions.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ppiankov/vigilo/internal/model"
)

// Artifact is the discoverable handoff record written by the MCP server so
// a hook invocation can adopt the same session id.
type Artifact struct {
	SessionID string `json:"session_id"`
	PID       int    `json:"pid"`
}

// Registry owns the artifact file for one MCP server process. Write it at
// startup, Release it on shutdown.
type Registry struct {
	path string
}

// NewRegistry targets the default artifact location.
func NewRegistry() *Registry {
	return &Registry{path: model.SessionArtifactPath()}
}

// Write persists the artifact atomically (temp sibling + rename).
func (r *Registry) Write(sessionID string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return model.E(model.KindConfig, err)
	}
	data, err := json.Marshal(Artifact{SessionID: sessionID, PID: os.Getpid()})
	if err != nil {
		return model.E(model.KindConfig, err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return model.E(model.KindConfig, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return model.E(model.KindConfig, fmt.Errorf("publishing session artifact: %w", err))
	}
	return nil
}

// Release removes the artifact. Safe to call when absent.
func (r *Registry) Release() {
	os.Remove(r.path)
}

// Adopt reads the artifact and returns its session id when the recorded
// process is still a live vigilo server owned by this user. A stale or
// missing artifact returns ok=false and the caller mints a fresh id.
func Adopt() (string, bool) {
	data, err := os.ReadFile(model.SessionArtifactPath())
	if err != nil {
		return "", false
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil || a.SessionID == "" || a.PID <= 0 {
		return "", false
	}
	if !pidIsOurServer(a.PID) {
		return "", false
	}
	return a.SessionID, true
}

// serverCommand is the process name a live artifact owner must carry.
var serverCommand = "vigilo"

// pidIsOurServer checks liveness, ownership, and that the process command
// looks like this sidecar. /proc gives all three on Linux; elsewhere the
// signal-0 liveness probe is the best available.
func pidIsOurServer(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		if err == syscall.EPERM {
			// Alive but not ours.
			return false
		}
		return false
	}
	proc := fmt.Sprintf("/proc/%d", pid)
	if info, err := os.Stat(proc); err == nil {
		if st, ok := info.Sys().(*syscall.Stat_t); ok && int(st.Uid) != os.Getuid() {
			return false
		}
		if cmdline, err := os.ReadFile(filepath.Join(proc, "cmdline")); err == nil {
			argv0, _, _ := strings.Cut(string(cmdline), "\x00")
			return strings.Contains(filepath.Base(argv0), serverCommand)
		}
	}
	return true
}
