package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/vigilo/internal/model"
)

func testEvent(tool string) *model.Event {
	return &model.Event{
		ID:        model.NewID(),
		Timestamp: model.Now(),
		SessionID: "11111111-1111-1111-1111-111111111111",
		Server:    model.ServerVigilo,
		Tool:      tool,
		Arguments: json.RawMessage(`{"path":"/tmp/x"}`),
		Outcome:   model.OK(json.RawMessage(`"done"`)),
		Risk:      model.Classify(tool),
	}
}

func TestAppendWritesWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	for i := 0; i < 3; i++ {
		if err := Append(testEvent("read_file"), path); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Fatal("ledger must end with a newline")
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var ev model.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
	}
}

func TestConcurrentAppendsProduceDistinctWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Append(testEvent("run_command"), path)
		}()
	}
	wg.Wait()

	r := &Reader{Path: path}
	events, err := r.Read(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != n {
		t.Fatalf("expected %d events, got %d", n, len(events))
	}
	ids := map[string]bool{}
	for _, ev := range events {
		if ids[ev.ID] {
			t.Fatalf("duplicate event id %s", ev.ID)
		}
		ids[ev.ID] = true
	}
}

func TestRotationAtThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	// Pre-seed the active file just under the threshold, then append once.
	pad := strings.Repeat("x", MaxSize-256)
	if err := os.WriteFile(path, []byte(`{"id":"pad","data":"`+pad+`"}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Append(testEvent("read_file"), path); err != nil {
		t.Fatal(err)
	}

	rotated, err := RotatedFiles(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rotated) != 1 {
		t.Fatalf("expected exactly 1 rotated sibling, got %d", len(rotated))
	}
	if !strings.HasSuffix(rotated[0].Path, ".jsonl") {
		t.Fatalf("rotated name %q", rotated[0].Path)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("active file should be empty after rotation, has %d bytes", info.Size())
	}

	// One more append lands in the fresh active file.
	if err := Append(testEvent("read_file"), path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Fatalf("expected 1 line in new active file, got %d", n)
	}
}

func TestRetentionKeepsFiveRotated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	base := time.Now().UnixMilli() - 10_000
	for i := 0; i < 8; i++ {
		name := rotatedName(path, base+int64(i))
		if err := os.WriteFile(name, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := rotate(path); err != nil {
		t.Fatal(err)
	}

	rotated, err := RotatedFiles(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rotated) != MaxRotated {
		t.Fatalf("expected %d rotated files, got %d", MaxRotated, len(rotated))
	}
	// The newest suffixes survive.
	for _, f := range rotated {
		if f.RotatedAt < base+4 {
			t.Fatalf("old rotation %d should have been deleted", f.RotatedAt)
		}
	}
}

func TestFilesOrdering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	os.WriteFile(rotatedName(path, 3000), []byte("{}\n"), 0o600)
	os.WriteFile(rotatedName(path, 1000), []byte("{}\n"), 0o600)
	os.WriteFile(rotatedName(path, 2000), []byte("{}\n"), 0o600)
	os.WriteFile(path, []byte("{}\n"), 0o600)

	files, err := Files(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 4 {
		t.Fatalf("expected 4 files, got %d", len(files))
	}
	if files[0].RotatedAt != 1000 || files[1].RotatedAt != 2000 || files[2].RotatedAt != 3000 {
		t.Fatalf("rotated files out of order: %+v", files)
	}
	if files[3].Path != path {
		t.Fatal("active file must come last")
	}
}

func TestPruneRemovesOldRotations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	old := time.Now().AddDate(0, 0, -40).UnixMilli()
	recent := time.Now().AddDate(0, 0, -5).UnixMilli()
	os.WriteFile(rotatedName(path, old), []byte("{}\n"), 0o600)
	os.WriteFile(rotatedName(path, recent), []byte("{}\n"), 0o600)
	os.WriteFile(path, []byte("{}\n"), 0o600)

	removed, err := Prune(path, 30)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	rotated, _ := RotatedFiles(path)
	if len(rotated) != 1 || rotated[0].RotatedAt != recent {
		t.Fatalf("wrong survivor: %+v", rotated)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("active file must never be pruned")
	}
}

func TestReaderSpansRotatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	evOld := testEvent("read_file")
	lineOld, _ := json.Marshal(evOld)
	os.WriteFile(rotatedName(path, time.Now().UnixMilli()-1000), append(lineOld, '\n'), 0o600)

	evNew := testEvent("write_file")
	if err := Append(evNew, path); err != nil {
		t.Fatal(err)
	}

	r := &Reader{Path: path}
	events, err := r.Read(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != evOld.ID || events[1].ID != evNew.ID {
		t.Fatal("rotated events must precede active events")
	}
}

func TestReaderFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ev1 := testEvent("read_file")
	ev2 := testEvent("run_command")
	ev2.SessionID = "22222222-2222-2222-2222-222222222222"
	Append(ev1, path)
	Append(ev2, path)

	r := &Reader{Path: path}

	byTool, _ := r.Read(Filter{Tool: "run_command"})
	if len(byTool) != 1 || byTool[0].Tool != "run_command" {
		t.Fatalf("tool filter failed: %+v", byTool)
	}
	byRisk, _ := r.Read(Filter{Risk: "exec"})
	if len(byRisk) != 1 {
		t.Fatalf("risk filter failed: %d", len(byRisk))
	}
	bySession, _ := r.Read(Filter{Session: "2222"})
	if len(bySession) != 1 || bySession[0].SessionID != ev2.SessionID {
		t.Fatalf("session prefix filter failed: %+v", bySession)
	}
	byDate, _ := r.Read(Filter{Since: "2099-01-01"})
	if len(byDate) != 0 {
		t.Fatalf("future since should match nothing, got %d", len(byDate))
	}
}

func TestQueueWritesAllEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	q := NewQueue(path)
	const n = 40
	for i := 0; i < n; i++ {
		q.Enqueue(testEvent("read_file"))
	}
	q.Close()

	r := &Reader{Path: path}
	events, err := r.Read(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != n {
		t.Fatalf("expected %d events after close, got %d", n, len(events))
	}
	if q.Dropped() != 0 || q.Failed() != 0 {
		t.Fatalf("unexpected drops=%d fails=%d", q.Dropped(), q.Failed())
	}
}

func TestMissingLedgerReadsEmpty(t *testing.T) {
	r := &Reader{Path: filepath.Join(t.TempDir(), "nope.jsonl")}
	events, err := r.Read(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
