package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/ledger"
	"github.com/ppiankov/vigilo/internal/model"
	"github.com/ppiankov/vigilo/internal/tools"
)

// register wires one catalog tool through the capture pipeline: timeout,
// project probe, diff, encryption, ledger append. Ledger trouble never
// fails the tool call.
func register[In, Out any](s *Server, name string, h func(context.Context, In) (Out, error)) {
	risk := model.Classify(name)

	handler := func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, Out, error) {
		started := time.Now()
		argsJSON, merr := json.Marshal(in)
		if merr != nil {
			argsJSON = json.RawMessage("null")
		}

		pre, hadPre := preState(name, argsJSON)

		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		out, err := h(cctx, in)
		timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
		cancel()

		durationUS := uint64(time.Since(started).Microseconds())

		var outcome model.Outcome
		if err != nil {
			code := string(model.KindOf(err))
			if timedOut {
				code = string(model.KindTimeout)
			}
			outcome = model.Errf(code, err.Error())
		} else {
			resultJSON, rerr := json.Marshal(out)
			if rerr != nil {
				resultJSON = json.RawMessage("null")
			}
			outcome = model.OK(resultJSON)
		}

		diff := ""
		if err == nil {
			diff = computeDiff(name, argsJSON, pre, hadPre)
		}

		s.record(name, risk, argsJSON, outcome, durationUS, timedOut && err != nil, diff)

		if err != nil {
			result := &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
			}
			var zero Out
			return result, zero, nil
		}
		return nil, out, nil
	}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        name,
		Description: tools.Descriptions[name],
		Meta:        mcpsdk.Meta{"risk": string(risk)},
	}, handler)
}

// record assembles and enqueues the capture event for one call.
func (s *Server) record(tool string, risk model.Risk, args json.RawMessage,
	outcome model.Outcome, durationUS uint64, timedOut bool, diff string) {

	s.total.Add(1)
	switch risk {
	case model.RiskRead:
		s.reads.Add(1)
	case model.RiskWrite:
		s.writes.Add(1)
	case model.RiskExec:
		s.execs.Add(1)
	}
	if outcome.IsError() {
		s.errCount.Add(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pc := s.prober.Probe(ctx, eventDir(args))

	ev := &model.Event{
		ID:         model.NewID(),
		Timestamp:  model.Now(),
		SessionID:  s.cfg.SessionID,
		Server:     model.ServerVigilo,
		Tool:       tool,
		Arguments:  args,
		Outcome:    outcome,
		DurationUS: durationUS,
		Risk:       risk,
		Project:    pc,
		Tag:        s.tag,
		Diff:       diff,
		TimedOut:   timedOut,
	}

	if err := crypto.SealEvent(s.key, ev); err != nil {
		ledger.Sidelog().WithField("kind", model.KindCrypto).
			WithField("event_id", ev.ID).WithError(err).
			Error("event encryption failed")
		crypto.Strip(ev)
	}

	s.queue.Enqueue(ev)
}

// pathArgs is the subset of arguments used for directory resolution and
// write diffs.
type pathArgs struct {
	Path    string `json:"path"`
	Cwd     string `json:"cwd"`
	Content string `json:"content"`
}

func eventDir(args json.RawMessage) string {
	var pa pathArgs
	if json.Unmarshal(args, &pa) != nil {
		return ""
	}
	if pa.Path == "" && pa.Cwd != "" {
		return pa.Cwd
	}
	if pa.Path == "" {
		return ""
	}
	if info, err := os.Stat(pa.Path); err == nil && info.IsDir() {
		return pa.Path
	}
	return filepath.Dir(pa.Path)
}

// preState captures file content before a write-class mutation for the
// post-call diff.
func preState(tool string, args json.RawMessage) (string, bool) {
	if tool != "write_file" && tool != "patch_file" {
		return "", false
	}
	var pa pathArgs
	if json.Unmarshal(args, &pa) != nil || pa.Path == "" {
		return "", false
	}
	data, err := os.ReadFile(pa.Path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// computeDiff builds the unified diff attached to successful write events.
func computeDiff(tool string, args json.RawMessage, pre string, hadPre bool) string {
	var pa pathArgs
	switch tool {
	case "write_file":
		if json.Unmarshal(args, &pa) != nil {
			return ""
		}
		if !hadPre {
			return "new file"
		}
		return model.UnifiedDiff(pre, pa.Content)
	case "patch_file":
		if json.Unmarshal(args, &pa) != nil || pa.Path == "" {
			return ""
		}
		post, err := os.ReadFile(pa.Path)
		if err != nil {
			return ""
		}
		if !hadPre {
			return "new file"
		}
		return model.UnifiedDiff(pre, string(post))
	}
	return ""
}
