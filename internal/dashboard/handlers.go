package dashboard

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/session"
	"github.com/ppiankov/vigilo/internal/stats"
)

// EventItem is the display projection of one event served to the browser.
type EventItem struct {
	ID              string     `json:"id"`
	Timestamp       string     `json:"timestamp"`
	SessionID       string     `json:"session_id"`
	Server          string     `json:"server"`
	Tool            string     `json:"tool"`
	Risk            model.Risk `json:"risk"`
	DurationUS      uint64     `json:"duration_us"`
	IsError         bool       `json:"is_error"`
	Project         string     `json:"project,omitempty"`
	Branch          string     `json:"branch,omitempty"`
	ArgDisplay      string     `json:"arg_display"`
	InputTokens     uint64     `json:"input_tokens,omitempty"`
	OutputTokens    uint64     `json:"output_tokens,omitempty"`
	CacheReadTokens uint64     `json:"cache_read_tokens,omitempty"`
	Model           string     `json:"model,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Diff            string     `json:"diff,omitempty"`
}

func eventToItem(ev *model.Event) EventItem {
	item := EventItem{
		ID:              ev.ID,
		Timestamp:       ev.Timestamp,
		SessionID:       ev.SessionID,
		Server:          ev.Server,
		Tool:            ev.Tool,
		Risk:            ev.Risk,
		DurationUS:      ev.DurationUS,
		IsError:         ev.Outcome.IsError(),
		Project:         ev.Project.Name,
		Branch:          ev.Project.Branch,
		ArgDisplay:      argDisplay(ev),
		InputTokens:     ev.InputTokens,
		OutputTokens:    ev.OutputTokens,
		CacheReadTokens: ev.CacheReadTokens,
		Diff:            ev.Diff,
	}
	if ev.Model != "" {
		item.Model = stats.NormalizeModel(ev.Model)
	}
	if item.IsError {
		item.ErrorMessage = ev.Outcome.Message
	}
	return item
}

// argDisplay compresses the arguments into a one-line label.
func argDisplay(ev *model.Event) string {
	if crypto.IsEnvelope(ev.Arguments) {
		return crypto.Encrypted
	}
	var pa struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
		Command  string `json:"command"`
		Pattern  string `json:"pattern"`
		From     string `json:"from"`
	}
	if json.Unmarshal(ev.Arguments, &pa) != nil {
		return ""
	}
	switch {
	case pa.Command != "":
		return pa.Command
	case pa.FilePath != "":
		return model.ShortenHome(pa.FilePath)
	case pa.Path != "":
		return model.ShortenHome(pa.Path)
	case pa.Pattern != "":
		return pa.Pattern
	case pa.From != "":
		return model.ShortenHome(pa.From)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func filterFromQuery(r *http.Request) ledger.Filter {
	q := r.URL.Query()
	return ledger.Filter{
		Since:   q.Get("since"),
		Until:   q.Get("until"),
		Session: q.Get("session"),
		Tool:    q.Get("tool"),
		Risk:    q.Get("risk"),
	}
}

// SummaryResponse is the /api/summary payload: totals over the full ledger.
type SummaryResponse struct {
	Sessions int          `json:"sessions"`
	Counts   stats.Counts `json:"counts"`
	Projects []string     `json:"projects"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.reader().ReadSessions(ledger.Filter{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	counts := stats.Counts{}
	projects := map[string]bool{}
	for _, sess := range sessions {
		for i := range sess.Events {
			counts.Add(&sess.Events[i])
			if name := sess.Events[i].Project.Name; name != "" {
				projects[name] = true
			}
		}
	}
	counts.AddCursorTokens(sessions)

	resp := SummaryResponse{Sessions: len(sessions), Counts: counts, Projects: []string{}}
	for name := range projects {
		resp.Projects = append(resp.Projects, name)
	}
	writeJSON(w, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.reader().ReadSessions(filterFromQuery(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	merged := session.Merge(sessions, stats.EventCost)
	writeJSON(w, merged)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.reader().ReadSessions(filterFromQuery(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats.Compute(sessions, nil))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.reader().Read(filterFromQuery(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	// Newest first.
	items := make([]EventItem, 0, limit)
	for i := len(events) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, eventToItem(&events[i]))
	}
	writeJSON(w, items)
}

// ErrorsResponse is the /api/errors payload.
type ErrorsResponse struct {
	TotalCalls   int            `json:"total_calls"`
	ErrorCount   int            `json:"error_count"`
	ByTool       []stats.ToolRow `json:"by_tool"`
	RecentErrors []EventItem    `json:"recent_errors"`
	Truncated    bool           `json:"truncated"`
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	events, err := s.reader().Read(filterFromQuery(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var errEvents []*model.Event
	for i := range events {
		if events[i].Outcome.IsError() {
			errEvents = append(errEvents, &events[i])
		}
	}

	byToolMap := make(map[string]*stats.ToolRow)
	for _, ev := range errEvents {
		row, ok := byToolMap[ev.Tool]
		if !ok {
			row = &stats.ToolRow{Tool: ev.Tool}
			byToolMap[ev.Tool] = row
		}
		row.Count++
		row.ErrorCount++
	}
	resp := ErrorsResponse{
		TotalCalls:   len(events),
		ErrorCount:   len(errEvents),
		ByTool:       []stats.ToolRow{},
		RecentErrors: []EventItem{},
		Truncated:    len(errEvents) > limit,
	}
	for _, row := range byToolMap {
		resp.ByTool = append(resp.ByTool, *row)
	}
	sort.Slice(resp.ByTool, func(i, j int) bool { return resp.ByTool[i].Count > resp.ByTool[j].Count })
	for i := len(errEvents) - 1; i >= 0 && len(resp.RecentErrors) < limit; i-- {
		resp.RecentErrors = append(resp.RecentErrors, eventToItem(errEvents[i]))
	}
	writeJSON(w, resp)
}
