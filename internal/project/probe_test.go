package project

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func gitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "t@t")
	run("config", "user.name", "t")
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestProbeInRepo(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git unavailable")
	}
	dir := initRepo(t)
	p := NewProber()
	pc := p.Probe(context.Background(), dir)

	resolved, _ := filepath.EvalSymlinks(dir)
	gotRoot, _ := filepath.EvalSymlinks(pc.Root)
	if gotRoot != resolved {
		t.Fatalf("root %q, want %q", gotRoot, resolved)
	}
	if pc.Name != filepath.Base(pc.Root) {
		t.Fatalf("name %q", pc.Name)
	}
	if pc.Branch != "main" {
		t.Fatalf("branch %q", pc.Branch)
	}
	if pc.Commit == "" {
		t.Fatal("missing commit")
	}
	if pc.Dirty {
		t.Fatal("fresh repo should be clean")
	}
}

func TestProbeDirtyFlag(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git unavailable")
	}
	dir := initRepo(t)
	os.WriteFile(filepath.Join(dir, "new.txt"), []byte("y\n"), 0o644)

	pc := NewProber().Probe(context.Background(), dir)
	if !pc.Dirty {
		t.Fatal("untracked file should mark the tree dirty")
	}
}

func TestProbeOutsideRepoIsEmpty(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git unavailable")
	}
	dir := t.TempDir()
	pc := NewProber().Probe(context.Background(), dir)
	if pc.Root != "" || pc.Branch != "" || pc.Name != "" {
		t.Fatalf("expected empty context, got %+v", pc)
	}
}

func TestProbeCaches(t *testing.T) {
	if !gitAvailable() {
		t.Skip("git unavailable")
	}
	dir := initRepo(t)
	p := NewProber()
	first := p.Probe(context.Background(), dir)

	// A change after the first probe is not observed by the same prober.
	os.WriteFile(filepath.Join(dir, "later.txt"), []byte("z\n"), 0o644)
	second := p.Probe(context.Background(), dir)
	if first.Dirty != second.Dirty {
		t.Fatal("probe results must be cached per directory")
	}
}

func TestDirFor(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	os.WriteFile(file, []byte("x"), 0o644)

	if got := DirFor(dir, "/cwd"); got != dir {
		t.Fatalf("directory arg: %q", got)
	}
	if got := DirFor(file, "/cwd"); got != dir {
		t.Fatalf("file arg resolves to parent: %q", got)
	}
	if got := DirFor("", "/cwd"); got != "/cwd" {
		t.Fatalf("empty path falls back to cwd: %q", got)
	}
	if got := DirFor("", ""); got != "." {
		t.Fatalf("no hints: %q", got)
	}
}
