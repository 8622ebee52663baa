package cursor

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/ppiankov/vigilo/internal/model"
)

// cacheFile holds token events the (out-of-scope) usage fetcher cached from
// the vendor API. One JSON object per line.
const cacheFile = "cursor-tokens.jsonl"

// CachedTokenEvent is one request's worth of authoritative token usage.
type CachedTokenEvent struct {
	TimestampMS      int64   `json:"timestamp_ms"`
	Model            string  `json:"model"`
	InputTokens      uint64  `json:"input_tokens"`
	OutputTokens     uint64  `json:"output_tokens"`
	CacheReadTokens  uint64  `json:"cache_read_tokens"`
	CacheWriteTokens uint64  `json:"cache_write_tokens"`
	CostCents        float64 `json:"cost_cents"`
}

// SessionTokens is the rollup of cached token events over one session span.
type SessionTokens struct {
	Model            string
	InputTokens      uint64
	OutputTokens     uint64
	CacheReadTokens  uint64
	CacheWriteTokens uint64
	CostUSD          float64
	RequestCount     int
}

// CachePath is the cache location inside the config directory.
func CachePath() string {
	return model.Path(cacheFile)
}

// LoadCachedTokens returns cached events within [startMS, endMS].
func LoadCachedTokens(startMS, endMS int64) []CachedTokenEvent {
	f, err := os.Open(CachePath())
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []CachedTokenEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev CachedTokenEvent
		if json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		if ev.TimestampMS >= startMS && ev.TimestampMS <= endMS {
			out = append(out, ev)
		}
	}
	return out
}

// AggregateCachedTokens folds cached events into session totals, picking
// the most frequent model as the label. Returns nil for an empty slice.
func AggregateCachedTokens(events []CachedTokenEvent) *SessionTokens {
	if len(events) == 0 {
		return nil
	}
	out := &SessionTokens{RequestCount: len(events)}
	modelCounts := make(map[string]int)
	var cents float64
	for _, ev := range events {
		out.InputTokens += ev.InputTokens
		out.OutputTokens += ev.OutputTokens
		out.CacheReadTokens += ev.CacheReadTokens
		out.CacheWriteTokens += ev.CacheWriteTokens
		cents += ev.CostCents
		modelCounts[ev.Model]++
	}
	out.CostUSD = cents / 100
	best := 0
	for m, n := range modelCounts {
		if n > best {
			best = n
			out.Model = m
		}
	}
	return out
}

// SessionTokensFor returns the cached rollup spanning a session's first and
// last event timestamps, for cursor-server sessions only.
func SessionTokensFor(events []model.Event) *SessionTokens {
	if len(events) == 0 || events[0].Server != model.ServerCursor {
		return nil
	}
	first, err1 := model.ParseTimestamp(events[0].Timestamp)
	last, err2 := model.ParseTimestamp(events[len(events)-1].Timestamp)
	if err1 != nil || err2 != nil {
		return nil
	}
	// Pad the window: API events land near, not inside, the hook timestamps.
	startMS := first.UnixMilli() - 5*60*1000
	endMS := last.UnixMilli() + 5*60*1000
	return AggregateCachedTokens(LoadCachedTokens(startMS, endMS))
}
