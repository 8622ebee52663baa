package stats

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ppiankov/vigilo/internal/cursor"
	"github.com/ppiankov/vigilo/internal/model"
)

// ModelRow is the per-model breakdown.
type ModelRow struct {
	Model           string  `json:"model"`
	Calls           int     `json:"calls"`
	InputTokens     uint64  `json:"input_tokens"`
	OutputTokens    uint64  `json:"output_tokens"`
	CacheReadTokens uint64  `json:"cache_read_tokens"`
	CostUSD         float64 `json:"cost_usd"`
}

// ToolRow is the per-tool breakdown.
type ToolRow struct {
	Tool       string `json:"tool"`
	Count      int    `json:"count"`
	ErrorCount int    `json:"error_count"`
}

// FileRow counts write-class events per file.
type FileRow struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

// ProjectRow is the per-project breakdown.
type ProjectRow struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Reads  int    `json:"reads"`
	Writes int    `json:"writes"`
	Execs  int    `json:"execs"`
}

// TimelineDay is one local-timezone day bucket.
type TimelineDay struct {
	Date         string  `json:"date"`
	CostUSD      float64 `json:"cost_usd"`
	InputTokens  uint64  `json:"input_tokens"`
	OutputTokens uint64  `json:"output_tokens"`
	Reads        int     `json:"reads"`
	Writes       int     `json:"writes"`
	Execs        int     `json:"execs"`
	Errors       int     `json:"errors"`
}

// Result is the full aggregator output.
type Result struct {
	Counts   Counts        `json:"counts"`
	Models   []ModelRow    `json:"models"`
	Tools    []ToolRow     `json:"tools"`
	Files    []FileRow     `json:"files"`
	Projects []ProjectRow  `json:"projects"`
	Timeline []TimelineDay `json:"timeline"`
}

func cursorTokensFor(events []model.Event) *cursor.SessionTokens {
	return cursor.SessionTokensFor(events)
}

// CursorTokens exposes the cached cursor rollup for one session's events.
func CursorTokens(events []model.Event) *cursor.SessionTokens {
	return cursorTokensFor(events)
}

// Compute folds grouped sessions into the full aggregate. Timeline buckets
// use loc; nil means the process-local timezone.
func Compute(sessions []model.SessionEvents, loc *time.Location) Result {
	if loc == nil {
		loc = time.Local
	}

	var all []model.Event
	for _, s := range sessions {
		all = append(all, s.Events...)
	}

	counts := CountEvents(all)
	counts.AddCursorTokens(sessions)

	modelMap := make(map[string]*ModelRow)
	toolMap := make(map[string]*ToolRow)
	fileMap := make(map[string]int)
	projMap := make(map[string]*ProjectRow)
	dayMap := make(map[string]*TimelineDay)

	for i := range all {
		ev := &all[i]

		if ev.Model != "" {
			name := NormalizeModel(ev.Model)
			row, ok := modelMap[name]
			if !ok {
				row = &ModelRow{Model: name}
				modelMap[name] = row
			}
			row.Calls++
			row.InputTokens += ev.InputTokens
			row.OutputTokens += ev.OutputTokens
			row.CacheReadTokens += ev.CacheReadTokens
			row.CostUSD += EventCost(ev)
		}

		tr, ok := toolMap[ev.Tool]
		if !ok {
			tr = &ToolRow{Tool: ev.Tool}
			toolMap[ev.Tool] = tr
		}
		tr.Count++
		if ev.Outcome.IsError() {
			tr.ErrorCount++
		}

		if ev.Risk == model.RiskWrite {
			if f := fileDisplay(ev.Arguments); f != "" {
				fileMap[f]++
			}
		}

		proj := ev.Project.Name
		if proj == "" {
			proj = ev.Project.Root
		}
		if proj == "" {
			proj = "unknown"
		}
		pr, ok := projMap[proj]
		if !ok {
			pr = &ProjectRow{Name: proj}
			projMap[proj] = pr
		}
		pr.Count++
		switch ev.Risk {
		case model.RiskRead:
			pr.Reads++
		case model.RiskWrite:
			pr.Writes++
		case model.RiskExec:
			pr.Execs++
		}

		date := localDate(ev.Timestamp, loc)
		day, ok := dayMap[date]
		if !ok {
			day = &TimelineDay{Date: date}
			dayMap[date] = day
		}
		day.CostUSD += EventCost(ev)
		day.InputTokens += ev.InputTokens
		day.OutputTokens += ev.OutputTokens
		switch ev.Risk {
		case model.RiskRead:
			day.Reads++
		case model.RiskWrite:
			day.Writes++
		case model.RiskExec:
			day.Execs++
		}
		if ev.Outcome.IsError() {
			day.Errors++
		}
	}

	// Authoritative cursor token totals land on the session's first day and
	// in the model table under the cached model name.
	for _, s := range sessions {
		ct := cursorTokensFor(s.Events)
		if ct == nil || len(s.Events) == 0 {
			continue
		}
		name := NormalizeModel(ct.Model)
		row, ok := modelMap[name]
		if !ok {
			row = &ModelRow{Model: name}
			modelMap[name] = row
		}
		row.InputTokens += ct.InputTokens
		row.OutputTokens += ct.OutputTokens
		row.CacheReadTokens += ct.CacheReadTokens
		row.CostUSD += ct.CostUSD

		date := localDate(s.Events[0].Timestamp, loc)
		day, ok := dayMap[date]
		if !ok {
			day = &TimelineDay{Date: date}
			dayMap[date] = day
		}
		day.CostUSD += ct.CostUSD
		day.InputTokens += ct.InputTokens
		day.OutputTokens += ct.OutputTokens
	}

	res := Result{Counts: counts}
	for _, row := range modelMap {
		res.Models = append(res.Models, *row)
	}
	sort.Slice(res.Models, func(i, j int) bool { return res.Models[i].Calls > res.Models[j].Calls })
	for _, row := range toolMap {
		res.Tools = append(res.Tools, *row)
	}
	sort.Slice(res.Tools, func(i, j int) bool { return res.Tools[i].Count > res.Tools[j].Count })
	for file, count := range fileMap {
		res.Files = append(res.Files, FileRow{File: file, Count: count})
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Count > res.Files[j].Count })
	for _, row := range projMap {
		res.Projects = append(res.Projects, *row)
	}
	sort.Slice(res.Projects, func(i, j int) bool { return res.Projects[i].Count > res.Projects[j].Count })
	for _, day := range dayMap {
		res.Timeline = append(res.Timeline, *day)
	}
	sort.Slice(res.Timeline, func(i, j int) bool { return res.Timeline[i].Date < res.Timeline[j].Date })
	return res
}

// fileDisplay extracts a short "dir/base" label from event arguments.
// Encrypted argument envelopes yield nothing.
func fileDisplay(args json.RawMessage) string {
	var pa struct {
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
	}
	if json.Unmarshal(args, &pa) != nil {
		return ""
	}
	path := pa.FilePath
	if path == "" {
		path = pa.Path
	}
	if path == "" {
		return ""
	}
	parts := splitLastTwo(path)
	return parts
}

func splitLastTwo(path string) string {
	slash1 := -1
	slash2 := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if slash1 < 0 {
				slash1 = i
			} else {
				slash2 = i
				break
			}
		}
	}
	if slash2 >= 0 {
		return path[slash2+1:]
	}
	if slash1 >= 0 {
		return path[slash1+1:]
	}
	return path
}

func localDate(ts string, loc *time.Location) string {
	t, err := model.ParseTimestamp(ts)
	if err != nil {
		return "unknown"
	}
	return t.In(loc).Format("2006-01-02")
}
