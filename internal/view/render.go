package view

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/session"
	"github.com/ppiankov/vigilo/internal/stats"
)

func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func eventLine(ev *model.Event) string {
	ts := ev.Timestamp
	if len(ts) >= 19 {
		ts = strings.Replace(ts[:19], "T", " ", 1)
	}
	outcome := green("ok")
	if ev.Outcome.IsError() {
		outcome = red("ERR")
	}
	line := fmt.Sprintf("%s  %s %-16s %s %s  %s%s",
		dim(ts), riskBadge(ev.Risk), ev.Tool, outcome,
		fmtDuration(ev.DurationUS), argLabel(ev), diffBadge(ev.Diff))
	if ev.Outcome.IsError() && ev.Outcome.Message != "" {
		line += "\n    " + red(firstLine(ev.Outcome.Message))
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Summary prints today at a glance.
func Summary(w io.Writer, sessions []model.SessionEvents) {
	var all []model.Event
	for _, s := range sessions {
		all = append(all, s.Events...)
	}
	c := stats.CountEvents(all)
	c.AddCursorTokens(sessions)

	fmt.Fprintf(w, "%s\n", bold("Today"))
	fmt.Fprintf(w, "  %d sessions · %d calls · %s errors\n",
		len(sessions), c.Total, red(strconv.Itoa(c.Errors)))
	fmt.Fprintf(w, "  read:%d write:%d exec:%d\n", c.Reads, c.Writes, c.Execs)
	if c.InputTokens > 0 || c.OutputTokens > 0 {
		fmt.Fprintf(w, "  tokens %s in · %s out · cost %s\n",
			fmtTokens(c.InputTokens), fmtTokens(c.OutputTokens), fmtCost(c.CostUSD))
	}
	projects := map[string]bool{}
	for i := range all {
		if all[i].Project.Name != "" {
			projects[all[i].Project.Name] = true
		}
	}
	if len(projects) > 0 {
		names := make([]string, 0, len(projects))
		for n := range projects {
			names = append(names, n)
		}
		fmt.Fprintf(w, "  projects: %s\n", strings.Join(names, ", "))
	}
}

// Tail prints the last n events, flat.
func Tail(w io.Writer, events []model.Event, n int) {
	if n <= 0 {
		n = 20
	}
	start := len(events) - n
	if start < 0 {
		start = 0
	}
	for i := start; i < len(events); i++ {
		fmt.Fprintln(w, eventLine(&events[i]))
	}
}

// Sessions prints the merged session list, one line each.
func Sessions(w io.Writer, merged []model.LogicalSession) {
	for _, s := range merged {
		date := s.FirstSeen
		if len(date) >= 10 {
			date = date[:10]
		}
		errs := ""
		if s.ErrorCount > 0 {
			errs = red(fmt.Sprintf("  %d errors", s.ErrorCount))
		}
		extra := ""
		if len(s.SessionIDs) > 1 {
			extra = dim(fmt.Sprintf(" (%d merged)", len(s.SessionIDs)))
		}
		fmt.Fprintf(w, "%s  %s  %-11s %-20s %-14s %4d calls  %s%s%s\n",
			cyan(shortID(s.ID)), dim(date), s.Server, s.Project, s.Branch,
			s.CallCount, fmtCost(s.CostUSD), errs, extra)
	}
}

// Stats prints the aggregate breakdown.
func Stats(w io.Writer, res stats.Result) {
	c := res.Counts
	fmt.Fprintf(w, "%s\n", bold("Totals"))
	fmt.Fprintf(w, "  %d calls · read:%d write:%d exec:%d · %d errors\n",
		c.Total, c.Reads, c.Writes, c.Execs, c.Errors)
	fmt.Fprintf(w, "  tokens %s in · %s out · %s cache read · cost %s\n",
		fmtTokens(c.InputTokens), fmtTokens(c.OutputTokens),
		fmtTokens(c.CacheReadTokens), fmtCost(c.CostUSD))

	if len(res.Models) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Models"))
		for _, m := range res.Models {
			fmt.Fprintf(w, "  %4d× %-28s %s in · %s out  %s\n",
				m.Calls, m.Model, fmtTokens(m.InputTokens),
				fmtTokens(m.OutputTokens), fmtCost(m.CostUSD))
		}
	}
	if len(res.Tools) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Tools"))
		for _, t := range res.Tools {
			errs := ""
			if t.ErrorCount > 0 {
				errs = red(fmt.Sprintf("  %d errors", t.ErrorCount))
			}
			fmt.Fprintf(w, "  %4d× %s%s\n", t.Count, t.Tool, errs)
		}
	}
	if len(res.Files) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Files"))
		for i, f := range res.Files {
			if i >= 15 {
				fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("… %d more", len(res.Files)-i)))
				break
			}
			fmt.Fprintf(w, "  %4d× %s\n", f.Count, f.File)
		}
	}
	if len(res.Timeline) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Timeline"))
		for _, d := range res.Timeline {
			fmt.Fprintf(w, "  %s  r:%-4d w:%-4d x:%-4d errors:%-3d %s\n",
				d.Date, d.Reads, d.Writes, d.Execs, d.Errors, fmtCost(d.CostUSD))
		}
	}
}

// Errors prints the error rollup, expanding full messages when asked.
func Errors(w io.Writer, events []model.Event, expand bool) {
	var errs []*model.Event
	for i := range events {
		if events[i].Outcome.IsError() {
			errs = append(errs, &events[i])
		}
	}
	fmt.Fprintf(w, "%d errors across %d calls\n", len(errs), len(events))
	for _, ev := range errs {
		fmt.Fprintln(w, eventLine(ev))
		if expand && ev.Outcome.Message != "" {
			for _, line := range strings.Split(ev.Outcome.Message, "\n") {
				fmt.Fprintf(w, "    %s\n", dim(line))
			}
		}
	}
}

// Diffs prints file diffs grouped by session.
func Diffs(w io.Writer, sessions []model.SessionEvents) {
	for _, s := range sessions {
		header := false
		for i := range s.Events {
			ev := &s.Events[i]
			if ev.Diff == "" || ev.Diff == "new file" ||
				ev.Diff == crypto.Encrypted || ev.Diff == crypto.Undecryptable {
				continue
			}
			if !header {
				fmt.Fprintf(w, "%s %s\n", cyan(shortID(s.ID)), dim(ev.Timestamp))
				header = true
			}
			fmt.Fprintf(w, "  %s %s\n", ev.Tool, argLabel(ev))
			printColoredDiff(w, ev.Diff)
		}
	}
}

func printColoredDiff(w io.Writer, diff string) {
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			fmt.Fprintf(w, "    %s\n", green(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintf(w, "    %s\n", red(line))
		default:
			fmt.Fprintf(w, "    %s\n", dim(line))
		}
	}
}

// Query prints a flat filtered event list.
func Query(w io.Writer, events []model.Event) {
	for i := range events {
		ev := &events[i]
		fmt.Fprintf(w, "%s %s\n", cyan(shortID(ev.SessionID)), eventLine(ev))
	}
}

// Grouped prints the ledger grouped by session; expand shows every event.
func Grouped(w io.Writer, sessions []model.SessionEvents, expand bool) {
	const collapsed = 10
	for _, s := range sessions {
		if len(s.Events) == 0 {
			continue
		}
		first := &s.Events[0]
		fmt.Fprintf(w, "%s  %s  %s %s  %d calls\n",
			cyan(shortID(s.ID)), dim(first.Timestamp), first.Server,
			first.Project.Name, len(s.Events))
		limit := len(s.Events)
		if !expand && limit > collapsed {
			limit = collapsed
		}
		for i := 0; i < limit; i++ {
			fmt.Fprintf(w, "  %s\n", eventLine(&s.Events[i]))
		}
		if limit < len(s.Events) {
			fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("… %d more (--expand)", len(s.Events)-limit)))
		}
	}
}

// Export writes events as CSV or JSON.
func Export(w io.Writer, events []model.Event, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{
			"id", "timestamp", "session_id", "server", "tool", "risk",
			"status", "duration_us", "project", "branch", "model",
			"input_tokens", "output_tokens",
		}); err != nil {
			return err
		}
		for i := range events {
			ev := &events[i]
			rec := []string{
				ev.ID, ev.Timestamp, ev.SessionID, ev.Server, ev.Tool,
				string(ev.Risk), ev.Outcome.Status,
				strconv.FormatUint(ev.DurationUS, 10),
				ev.Project.Name, ev.Project.Branch, ev.Model,
				strconv.FormatUint(ev.InputTokens, 10),
				strconv.FormatUint(ev.OutputTokens, 10),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return model.Ef(model.KindConfig, "unknown export format %q", format)
	}
}

// MergeSessions is the shared rollup used by sessions renderers.
func MergeSessions(sessions []model.SessionEvents) []model.LogicalSession {
	merged := session.Merge(sessions, stats.EventCost)
	for i := range merged {
		if ct := cursorSessionCost(sessions, merged[i].SessionIDs); ct > 0 {
			merged[i].CostUSD += ct
		}
	}
	return merged
}

func cursorSessionCost(sessions []model.SessionEvents, ids []string) float64 {
	total := 0.0
	for _, s := range sessions {
		for _, id := range ids {
			if s.ID == id {
				if ct := stats.CursorTokens(s.Events); ct != nil {
					total += ct.CostUSD
				}
			}
		}
	}
	return total
}

// TodayDate is today's date in the local timezone.
func TodayDate() string {
	return time.Now().Format("2006-01-02")
}
