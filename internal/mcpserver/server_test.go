package mcpserver

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/session"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VIGILO_ENCRYPTION_KEY", "")
	t.Setenv("VIGILO_TAG", "")
	t.Setenv("VIGILO_TIMEOUT_SECS", "")

	path := filepath.Join(home, "events.jsonl")
	s, err := New(Config{LedgerPath: path})
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	return s, path
}

func readLedger(t *testing.T, path string) []model.Event {
	t.Helper()
	r := &ledger.Reader{Path: path}
	events, err := r.Read(ledger.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func TestNewWritesSessionArtifact(t *testing.T) {
	s, _ := newTestServer(t)
	defer s.Close()

	data, err := os.ReadFile(model.SessionArtifactPath())
	if err != nil {
		t.Fatalf("session artifact missing: %v", err)
	}
	var a session.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatal(err)
	}
	if a.SessionID != s.cfg.SessionID || a.PID != os.Getpid() {
		t.Fatalf("artifact %+v", a)
	}
}

func TestCloseReleasesArtifact(t *testing.T) {
	s, _ := newTestServer(t)
	s.Close()
	if _, err := os.Stat(model.SessionArtifactPath()); !os.IsNotExist(err) {
		t.Fatal("artifact should be removed on close")
	}
}

func TestRecordCapturesEvent(t *testing.T) {
	s, path := newTestServer(t)

	args := json.RawMessage(`{"path":"/tmp/a.txt"}`)
	s.record("read_file", model.RiskRead, args, model.OK(json.RawMessage(`"hi"`)), 1500, false, "")
	s.Close()

	events := readLedger(t, path)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Server != model.ServerVigilo {
		t.Fatalf("server %q", ev.Server)
	}
	if ev.SessionID != s.cfg.SessionID {
		t.Fatal("event must carry the server session id")
	}
	if ev.Tool != "read_file" || ev.DurationUS != 1500 {
		t.Fatalf("event %+v", ev)
	}
	if _, err := model.ParseTimestamp(ev.Timestamp); err != nil {
		t.Fatalf("timestamp %q: %v", ev.Timestamp, err)
	}
}

func TestRecordEncryptsWhenKeyed(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	raw := make([]byte, 32)
	t.Setenv("VIGILO_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(raw))
	t.Setenv("VIGILO_TAG", "")
	t.Setenv("VIGILO_TIMEOUT_SECS", "")

	path := filepath.Join(home, "events.jsonl")
	s, err := New(Config{LedgerPath: path})
	if err != nil {
		t.Fatal(err)
	}

	args := json.RawMessage(`{"path":"/tmp/secret-file.txt"}`)
	s.record("read_file", model.RiskRead, args, model.OK(json.RawMessage(`"secret-content"`)), 10, false, "")
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if strings.Contains(line, "secret-file") || strings.Contains(line, "secret-content") {
		t.Fatalf("plaintext leaked: %s", line)
	}

	// The read side recovers the plaintext with the same key.
	events := readLedger(t, path)
	if len(events) != 1 {
		t.Fatal("expected 1 event")
	}
	r := ledger.NewReader(path)
	got, err := r.Read(ledger.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got[0].Arguments), "secret-file") {
		t.Fatalf("decryption failed: %s", got[0].Arguments)
	}
}

func TestRecordTallies(t *testing.T) {
	s, _ := newTestServer(t)
	defer s.Close()

	s.record("read_file", model.RiskRead, nil, model.OK(nil), 1, false, "")
	s.record("write_file", model.RiskWrite, nil, model.OK(nil), 1, false, "")
	s.record("run_command", model.RiskExec, nil, model.Errf("timeout", "timed out"), 1, true, "")

	if s.total.Load() != 3 || s.reads.Load() != 1 || s.writes.Load() != 1 ||
		s.execs.Load() != 1 || s.errCount.Load() != 1 {
		t.Fatalf("tallies total=%d r=%d w=%d x=%d e=%d",
			s.total.Load(), s.reads.Load(), s.writes.Load(), s.execs.Load(), s.errCount.Load())
	}
}

func TestPreStateAndDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("hello\n"), 0o644)

	args, _ := json.Marshal(map[string]string{"path": path, "content": "hello\nworld\n"})

	pre, hadPre := preState("write_file", args)
	if !hadPre || pre != "hello\n" {
		t.Fatalf("pre state %q %v", pre, hadPre)
	}
	diff := computeDiff("write_file", args, pre, hadPre)
	if !strings.Contains(diff, "+world") {
		t.Fatalf("diff %q", diff)
	}
}

func TestDiffNewFile(t *testing.T) {
	args, _ := json.Marshal(map[string]string{
		"path":    filepath.Join(t.TempDir(), "fresh.txt"),
		"content": "data\n",
	})
	pre, hadPre := preState("write_file", args)
	if hadPre {
		t.Fatal("missing file must have no pre state")
	}
	if diff := computeDiff("write_file", args, pre, hadPre); diff != "new file" {
		t.Fatalf("diff %q", diff)
	}
}

func TestPreStateOnlyForWriteClass(t *testing.T) {
	if _, had := preState("read_file", json.RawMessage(`{"path":"/etc/hostname"}`)); had {
		t.Fatal("read tools must not capture pre state")
	}
}

func TestEventDirResolution(t *testing.T) {
	dir := t.TempDir()
	args, _ := json.Marshal(map[string]string{"path": dir})
	if got := eventDir(args); got != dir {
		t.Fatalf("dir arg: %q", got)
	}
	args, _ = json.Marshal(map[string]string{"path": filepath.Join(dir, "file.txt")})
	if got := eventDir(args); got != dir {
		t.Fatalf("file arg should resolve to parent: %q", got)
	}
	args, _ = json.Marshal(map[string]string{"cwd": "/work"})
	if got := eventDir(args); got != "/work" {
		t.Fatalf("cwd arg: %q", got)
	}
}

func TestResolveTimeout(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VIGILO_TIMEOUT_SECS", "5")
	if d := resolveTimeout(); d.Seconds() != 5 {
		t.Fatalf("timeout %v", d)
	}
	t.Setenv("VIGILO_TIMEOUT_SECS", "bogus")
	if d := resolveTimeout(); d != defaultTimeout {
		t.Fatalf("bad value must fall back to default, got %v", d)
	}
}
