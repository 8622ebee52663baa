package session

import (
	"sort"

	"github.com/ppiankov/vigilo/internal/model"
)

// MergeGapSecs is the maximum idle gap between two raw sessions that still
// belong to the same logical session.
const MergeGapSecs = 30 * 60

type meta struct {
	id         string
	server     string
	root       string
	branch     string
	first      string
	last       string
	firstEpoch int64
	lastEpoch  int64
	callCount  int
	durationUS uint64
	costUSD    float64
	errorCount int
}

type group struct {
	model.LogicalSession
	root       string
	firstEpoch int64
	lastEpoch  int64
}

// Merge folds raw sessions into logical sessions. Two raw sessions join iff
// they share server, non-empty project root, and non-empty branch, the gap
// between them is within MergeGapSecs, and no third session with the same
// (server, root) interleaves. costOf prices one event; nil means zero cost.
func Merge(sessions []model.SessionEvents, costOf func(*model.Event) float64) []model.LogicalSession {
	metas := make([]meta, 0, len(sessions))
	for _, s := range sessions {
		if len(s.Events) == 0 {
			continue
		}
		first := &s.Events[0]
		last := &s.Events[len(s.Events)-1]
		m := meta{
			id:        s.ID,
			server:    first.Server,
			root:      first.Project.Root,
			branch:    first.Project.Branch,
			first:     first.Timestamp,
			last:      last.Timestamp,
			callCount: len(s.Events),
		}
		m.firstEpoch = epochOf(first.Timestamp)
		m.lastEpoch = epochOf(last.Timestamp)
		for i := range s.Events {
			ev := &s.Events[i]
			m.durationUS += ev.DurationUS
			if ev.Outcome.IsError() {
				m.errorCount++
			}
			if costOf != nil {
				m.costUSD += costOf(ev)
			}
		}
		metas = append(metas, m)
	}
	sort.SliceStable(metas, func(i, j int) bool { return metas[i].firstEpoch < metas[j].firstEpoch })

	var groups []group
	for _, m := range metas {
		idx := mergeTarget(groups, m)
		if idx < 0 {
			groups = append(groups, group{
				LogicalSession: model.LogicalSession{
					ID:         m.id,
					SessionIDs: []string{m.id},
					Server:     m.server,
					FirstSeen:  m.first,
					LastSeen:   m.last,
					Project:    m.root,
					Branch:     m.branch,
					CallCount:  m.callCount,
					DurationUS: m.durationUS,
					CostUSD:    m.costUSD,
					ErrorCount: m.errorCount,
				},
				root:       m.root,
				firstEpoch: m.firstEpoch,
				lastEpoch:  m.lastEpoch,
			})
			continue
		}
		g := &groups[idx]
		g.SessionIDs = append(g.SessionIDs, m.id)
		g.CallCount += m.callCount
		g.DurationUS += m.durationUS
		g.CostUSD += m.costUSD
		g.ErrorCount += m.errorCount
		if m.lastEpoch > g.lastEpoch {
			g.lastEpoch = m.lastEpoch
			g.LastSeen = m.last
		}
	}

	out := make([]model.LogicalSession, len(groups))
	for i, g := range groups {
		out[i] = g.LogicalSession
	}
	return out
}

// mergeTarget finds the group m may join, or -1. A candidate must match on
// server, root, and branch with the gap bound; any other group sharing
// (server, root) whose activity falls inside that gap splits the pair.
func mergeTarget(groups []group, m meta) int {
	if m.root == "" || m.branch == "" {
		return -1
	}
	best := -1
	for i := range groups {
		g := &groups[i]
		if g.Server != m.server || g.root != m.root || g.Branch != m.branch {
			continue
		}
		gap := m.firstEpoch - g.lastEpoch
		if gap < 0 {
			gap = -gap
		}
		if gap > MergeGapSecs {
			continue
		}
		if best < 0 || groups[i].lastEpoch > groups[best].lastEpoch {
			best = i
		}
	}
	if best < 0 {
		return -1
	}
	// Interleaved third session with the same (server, root) splits the merge.
	lo, hi := groups[best].lastEpoch, m.firstEpoch
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := range groups {
		if i == best {
			continue
		}
		g := &groups[i]
		if g.Server != m.server || g.root != m.root {
			continue
		}
		if g.firstEpoch < hi && g.lastEpoch > lo {
			return -1
		}
	}
	return best
}

func epochOf(ts string) int64 {
	t, err := model.ParseTimestamp(ts)
	if err != nil {
		return 0
	}
	return t.Unix()
}
