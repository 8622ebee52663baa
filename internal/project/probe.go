// Package project probes git context for a working directory: repo root,
// name, branch, short commit, and dirty state. Results are cached per
// directory for the lifetime of one prober.
package project

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/vigilo/internal/model"
)

// Prober answers git questions about directories, memoizing per directory.
type Prober struct {
	mu    sync.Mutex
	cache map[string]model.ProjectContext
}

// NewProber returns an empty prober. One prober per process invocation.
func NewProber() *Prober {
	return &Prober{cache: make(map[string]model.ProjectContext)}
}

// Probe returns the project context for dir. An empty dir probes the
// process working directory. Probing failures leave fields empty.
func (p *Prober) Probe(ctx context.Context, dir string) model.ProjectContext {
	if dir == "" {
		dir = "."
	}
	p.mu.Lock()
	if pc, ok := p.cache[dir]; ok {
		p.mu.Unlock()
		return pc
	}
	p.mu.Unlock()

	pc := model.ProjectContext{
		Root:   git(ctx, dir, "rev-parse", "--show-toplevel"),
		Branch: git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"),
		Commit: git(ctx, dir, "rev-parse", "--short", "HEAD"),
	}
	if pc.Root != "" {
		pc.Name = filepath.Base(pc.Root)
	}
	pc.Dirty = git(ctx, dir, "status", "--porcelain") != ""

	p.mu.Lock()
	p.cache[dir] = pc
	p.mu.Unlock()
	return pc
}

// DirFor resolves the directory a tool call is effectively operating in:
// the path (or its parent for files) from the arguments, else cwd.
func DirFor(pathArg, cwd string) string {
	if pathArg == "" {
		if cwd == "" {
			return "."
		}
		return cwd
	}
	if isDir(pathArg) {
		return pathArg
	}
	if parent := filepath.Dir(pathArg); parent != "" {
		return parent
	}
	if cwd != "" {
		return cwd
	}
	return "."
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func git(ctx context.Context, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
