package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/vigilo/internal/crypto"
	"github.com/ppiankov/vigilo/internal/model"
)

// Filter narrows a ledger scan. Since/Until are YYYY-MM-DD dates compared
// against the event date; Session matches by id prefix.
type Filter struct {
	Since   string
	Until   string
	Session string
	Tool    string
	Risk    string
}

// Matches reports whether an event passes the filter.
func (f *Filter) Matches(ev *model.Event) bool {
	date := ev.Timestamp
	if len(date) >= 10 {
		date = date[:10]
	}
	if f.Since != "" && date < f.Since {
		return false
	}
	if f.Until != "" && date > f.Until {
		return false
	}
	if f.Session != "" && !strings.HasPrefix(ev.SessionID, f.Session) {
		return false
	}
	if f.Tool != "" && ev.Tool != f.Tool {
		return false
	}
	if f.Risk != "" && string(ev.Risk) != f.Risk {
		return false
	}
	return true
}

// Reader scans the active ledger and its rotated siblings in rotation
// order, decrypting envelope fields when a key is available.
type Reader struct {
	Path string
	Key  *crypto.Key
}

// NewReader builds a reader over the resolved ledger path with whatever key
// is configured. Key errors degrade to plaintext-only reads.
func NewReader(path string) *Reader {
	key, err := crypto.LoadConfigured()
	if err != nil {
		Sidelog().WithField("kind", model.KindCrypto).WithError(err).
			Warn("encryption key unavailable, reading without decryption")
		key = nil
	}
	return &Reader{Path: path, Key: key}
}

// Read returns all events passing the filter, in ledger order (which is
// timestamp order across a single writer and rotation-suffix order across
// files). Unparseable lines are skipped. A missing ledger yields no events;
// an existing but unreadable active file is a ledger error.
func (r *Reader) Read(filter Filter) ([]model.Event, error) {
	files, err := Files(r.Path)
	if err != nil {
		return nil, model.E(model.KindLedger, err)
	}

	sinceMS := dateToEpochMS(filter.Since)

	var out []model.Event
	for _, f := range files {
		// A rotated file entirely before --since holds nothing of interest.
		if sinceMS > 0 && f.RotatedAt != activeSentinel && f.RotatedAt < sinceMS {
			continue
		}
		file, err := os.Open(f.Path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, model.E(model.KindLedger, err)
		}
		sc := bufio.NewScanner(file)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				continue
			}
			if !filter.Matches(&ev) {
				continue
			}
			r.Decrypt(&ev)
			out = append(out, ev)
		}
		file.Close()
	}
	return out, nil
}

// ReadSessions groups filtered events by session id, preserving ledger
// order within each session and ordering sessions by first appearance.
func (r *Reader) ReadSessions(filter Filter) ([]model.SessionEvents, error) {
	events, err := r.Read(filter)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var out []model.SessionEvents
	for _, ev := range events {
		i, ok := index[ev.SessionID]
		if !ok {
			i = len(out)
			index[ev.SessionID] = i
			out = append(out, model.SessionEvents{ID: ev.SessionID})
		}
		out[i].Events = append(out[i].Events, ev)
	}
	return out, nil
}

// Decrypt replaces envelope subtrees in place, best-effort. Failures leave
// placeholders and bump the sidelog.
func (r *Reader) Decrypt(ev *model.Event) {
	if len(ev.Arguments) > 0 {
		raw, ok := crypto.DecryptJSON(r.Key, ev.ID, crypto.FieldArguments, ev.Arguments)
		ev.Arguments = raw
		if !ok {
			r.countUndecryptable(ev.ID, crypto.FieldArguments)
		}
	}
	if len(ev.Outcome.Result) > 0 {
		raw, ok := crypto.DecryptJSON(r.Key, ev.ID, crypto.FieldOutcomeResult, ev.Outcome.Result)
		ev.Outcome.Result = raw
		if !ok {
			r.countUndecryptable(ev.ID, crypto.FieldOutcomeResult)
		}
	}
	if ev.Outcome.Message != "" {
		raw, ok := crypto.DecryptJSON(r.Key, ev.ID, crypto.FieldOutcomeMessage, json.RawMessage(ev.Outcome.Message))
		if ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				ev.Outcome.Message = s
			}
		} else {
			ev.Outcome.Message = r.placeholder()
			r.countUndecryptable(ev.ID, crypto.FieldOutcomeMessage)
		}
	}
	if ev.Diff != "" {
		raw, ok := crypto.DecryptJSON(r.Key, ev.ID, crypto.FieldDiff, json.RawMessage(ev.Diff))
		if ok {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				ev.Diff = s
			}
		} else {
			ev.Diff = r.placeholder()
			r.countUndecryptable(ev.ID, crypto.FieldDiff)
		}
	}
}

// placeholder is what a string field degrades to when it cannot be read:
// expected opacity without a key, a decryption failure with one.
func (r *Reader) placeholder() string {
	if r.Key == nil {
		return crypto.Encrypted
	}
	return crypto.Undecryptable
}

func (r *Reader) countUndecryptable(id, field string) {
	if r.Key == nil {
		return // no key configured: envelopes are expected, not failures
	}
	Sidelog().WithField("kind", model.KindCrypto).
		WithField("event_id", id).WithField("field", field).
		Warn("undecryptable field")
}

func dateToEpochMS(date string) int64 {
	if date == "" {
		return 0
	}
	t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
