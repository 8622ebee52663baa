package stats

import (
	"github.com/ppiankov/vigilo/internal/model"
)

// Counts are the global totals over a filtered event stream.
type Counts struct {
	Total           int     `json:"total"`
	Reads           int     `json:"reads"`
	Writes          int     `json:"writes"`
	Execs           int     `json:"execs"`
	Errors          int     `json:"errors"`
	InputTokens     uint64  `json:"input_tokens"`
	OutputTokens    uint64  `json:"output_tokens"`
	CacheReadTokens uint64  `json:"cache_read_tokens"`
	CostUSD         float64 `json:"cost_usd"`
	TotalDurationUS uint64  `json:"total_duration_us"`
}

// Add folds one event into the counts.
func (c *Counts) Add(ev *model.Event) {
	c.Total++
	switch ev.Risk {
	case model.RiskRead:
		c.Reads++
	case model.RiskWrite:
		c.Writes++
	case model.RiskExec:
		c.Execs++
	}
	if ev.Outcome.IsError() {
		c.Errors++
	}
	c.InputTokens += ev.InputTokens
	c.OutputTokens += ev.OutputTokens
	c.CacheReadTokens += ev.CacheReadTokens
	c.CostUSD += EventCost(ev)
	c.TotalDurationUS += ev.DurationUS
}

// CountEvents folds a slice.
func CountEvents(events []model.Event) Counts {
	var c Counts
	for i := range events {
		c.Add(&events[i])
	}
	return c
}

// Combine merges two partial counts. CountEvents(A ++ B) equals
// Combine(CountEvents(A), CountEvents(B)).
func Combine(a, b Counts) Counts {
	return Counts{
		Total:           a.Total + b.Total,
		Reads:           a.Reads + b.Reads,
		Writes:          a.Writes + b.Writes,
		Execs:           a.Execs + b.Execs,
		Errors:          a.Errors + b.Errors,
		InputTokens:     a.InputTokens + b.InputTokens,
		OutputTokens:    a.OutputTokens + b.OutputTokens,
		CacheReadTokens: a.CacheReadTokens + b.CacheReadTokens,
		CostUSD:         a.CostUSD + b.CostUSD,
		TotalDurationUS: a.TotalDurationUS + b.TotalDurationUS,
	}
}

// AddCursorTokens merges authoritative cached token totals for
// cursor-server sessions into the counts, replacing estimates the hook path
// could not supply.
func (c *Counts) AddCursorTokens(sessions []model.SessionEvents) {
	for _, s := range sessions {
		if ct := cursorTokensFor(s.Events); ct != nil {
			c.InputTokens += ct.InputTokens
			c.OutputTokens += ct.OutputTokens
			c.CacheReadTokens += ct.CacheReadTokens
			c.CostUSD += ct.CostUSD
		}
	}
}
