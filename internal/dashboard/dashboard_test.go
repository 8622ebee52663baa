package dashboard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
)

func seedLedger(t *testing.T) (*Server, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("VIGILO_ENCRYPTION_KEY", "")

	path := filepath.Join(home, ".vigilo", "events.jsonl")
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := &model.Event{
			ID:        model.NewID(),
			Timestamp: base.Add(time.Duration(i) * time.Minute).Format("2006-01-02T15:04:05.000Z"),
			SessionID: "aaaaaaaa-0000-0000-0000-000000000000",
			Server:    model.ServerVigilo,
			Tool:      "read_file",
			Arguments: json.RawMessage(`{"path":"/repo/main.go"}`),
			Outcome:   model.OK(nil),
			Risk:      model.RiskRead,
			Project:   model.ProjectContext{Root: "/repo", Name: "repo", Branch: "main"},
		}
		if i == 4 {
			ev.Tool = "run_command"
			ev.Risk = model.RiskExec
			ev.Outcome = model.Errf("timeout", "timed out after 30s")
		}
		if err := ledger.Append(ev, path); err != nil {
			t.Fatal(err)
		}
	}
	return New(path, 0), path
}

func (s *Server) testHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/errors", s.handleErrors)
	mux.HandleFunc("/api/events/stream", s.handleStream)
	return s.secure(mux)
}

func getJSON(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.Host = "127.0.0.1:7847"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s returned %d: %s", path, rec.Code, rec.Body)
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: bad JSON: %v", path, err)
		}
	}
	return rec
}

func TestSummaryEndpoint(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	var resp SummaryResponse
	getJSON(t, h, "/api/summary", &resp)
	if resp.Sessions != 1 {
		t.Fatalf("sessions %d", resp.Sessions)
	}
	if resp.Counts.Total != 5 || resp.Counts.Errors != 1 {
		t.Fatalf("counts %+v", resp.Counts)
	}
}

func TestEventsEndpointNewestFirst(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	var items []EventItem
	getJSON(t, h, "/api/events?limit=3", &items)
	if len(items) != 3 {
		t.Fatalf("items %d", len(items))
	}
	if items[0].Timestamp < items[1].Timestamp {
		t.Fatal("events must be newest first")
	}
	if items[0].Tool != "run_command" || !items[0].IsError {
		t.Fatalf("newest item %+v", items[0])
	}
}

func TestEventsFilterByRisk(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	var items []EventItem
	getJSON(t, h, "/api/events?risk=exec", &items)
	if len(items) != 1 || items[0].Risk != model.RiskExec {
		t.Fatalf("items %+v", items)
	}
}

func TestErrorsEndpoint(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	var resp ErrorsResponse
	getJSON(t, h, "/api/errors", &resp)
	if resp.TotalCalls != 5 || resp.ErrorCount != 1 {
		t.Fatalf("resp %+v", resp)
	}
	if len(resp.RecentErrors) != 1 || resp.RecentErrors[0].ErrorMessage != "timed out after 30s" {
		t.Fatalf("recent %+v", resp.RecentErrors)
	}
	if len(resp.ByTool) != 1 || resp.ByTool[0].Tool != "run_command" {
		t.Fatalf("by_tool %+v", resp.ByTool)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	var sessions []model.LogicalSession
	getJSON(t, h, "/api/sessions", &sessions)
	if len(sessions) != 1 {
		t.Fatalf("sessions %+v", sessions)
	}
	if sessions[0].CallCount != 5 || sessions[0].ErrorCount != 1 {
		t.Fatalf("session %+v", sessions[0])
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	var resp struct {
		Counts struct {
			Total int `json:"total"`
		} `json:"counts"`
		Tools []struct {
			Tool  string `json:"tool"`
			Count int    `json:"count"`
		} `json:"tools"`
	}
	getJSON(t, h, "/api/stats", &resp)
	if resp.Counts.Total != 5 {
		t.Fatalf("total %d", resp.Counts.Total)
	}
	if len(resp.Tools) != 2 || resp.Tools[0].Tool != "read_file" {
		t.Fatalf("tools %+v", resp.Tools)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	rec := getJSON(t, h, "/api/summary", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("nosniff header %q", got)
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'self'") {
		t.Fatalf("csp %q", csp)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("cache-control %q", got)
	}
}

func TestHostCheckRejectsForeignHosts(t *testing.T) {
	s, _ := seedLedger(t)
	h := s.testHandler()

	req := httptest.NewRequest("GET", "/api/summary", nil)
	req.Host = "evil.example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign host, got %d", rec.Code)
	}

	for _, host := range []string{"127.0.0.1:7847", "localhost:7847", "localhost"} {
		req := httptest.NewRequest("GET", "/api/summary", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("host %q rejected with %d", host, rec.Code)
		}
	}
}

func TestStreamDeliversAcrossRotation(t *testing.T) {
	s, path := seedLedger(t)

	srv := httptest.NewServer(s.testHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	received := make(chan EventItem, 32)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "data: ") {
				var item EventItem
				if json.Unmarshal([]byte(line[len("data: "):]), &item) == nil {
					received <- item
				}
			}
		}
	}()

	// Give the tail a moment to reach EOF before injecting.
	time.Sleep(300 * time.Millisecond)

	inject := func(n int, tool string) {
		for i := 0; i < n; i++ {
			ev := &model.Event{
				ID:        model.NewID(),
				Timestamp: model.Now(),
				SessionID: "bbbbbbbb-0000-0000-0000-000000000000",
				Server:    model.ServerVigilo,
				Tool:      tool,
				Arguments: json.RawMessage(`{}`),
				Outcome:   model.OK(nil),
				Risk:      model.RiskRead,
			}
			if err := ledger.Append(ev, path); err != nil {
				t.Error(err)
			}
		}
	}

	inject(10, "read_file")

	collect := func(want int) []EventItem {
		var items []EventItem
		deadline := time.After(10 * time.Second)
		for len(items) < want {
			select {
			case item := <-received:
				items = append(items, item)
			case <-deadline:
				t.Fatalf("timed out with %d/%d events", len(items), want)
			}
		}
		return items
	}
	first := collect(10)

	// Force a rotation: rename the active file and recreate it, as the
	// writer's rotation does, then inject more.
	if err := os.Rename(path, fmt.Sprintf("%s.%d.jsonl",
		strings.TrimSuffix(path, ".jsonl"), time.Now().UnixMilli())); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	inject(3, "list_directory")
	rest := collect(3)

	seen := map[string]bool{}
	for _, item := range append(first, rest...) {
		if seen[item.ID] {
			t.Fatalf("duplicate event %s", item.ID)
		}
		seen[item.ID] = true
	}
	if len(seen) != 13 {
		t.Fatalf("expected 13 distinct events, got %d", len(seen))
	}
}
