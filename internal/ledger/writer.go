// Package ledger owns the append-only JSON-lines event store: single-line
// atomic appends under advisory locking, size-triggered rotation, bounded
// retention, and the ordered read path over the active file and its rotated
// siblings.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ppiankov/vigilo/internal/model"
)

// MaxSize is the rotation threshold for the active file.
const MaxSize = 10 * 1024 * 1024

// MaxRotated is how many rotated siblings retention keeps.
const MaxRotated = 5

// Append writes one event as a whole line to the active ledger file,
// rotating afterwards if the size threshold is crossed. The exclusive flock
// spans the write and the rotation check so concurrent writers (MCP server
// plus hook subprocesses) interleave whole lines only.
func Append(ev *model.Event, ledgerPath string) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return model.E(model.KindLedger, fmt.Errorf("serializing event: %w", err))
	}
	return appendLine(append(line, '\n'), ledgerPath)
}

func appendLine(line []byte, ledgerPath string) error {
	if dir := filepath.Dir(ledgerPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return model.E(model.KindLedger, fmt.Errorf("creating ledger directory: %w", err))
		}
	}

	f, err := os.OpenFile(ledgerPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return model.E(model.KindLedger, fmt.Errorf("opening ledger: %w", err))
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return model.E(model.KindLedger, fmt.Errorf("locking ledger: %w", err))
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if _, err := f.Write(line); err != nil {
		return model.E(model.KindLedger, fmt.Errorf("writing event: %w", err))
	}

	info, err := f.Stat()
	if err == nil && info.Size() >= MaxSize {
		// Still holding the lock — safe to rotate.
		if err := rotate(ledgerPath); err != nil {
			return model.E(model.KindLedger, fmt.Errorf("rotating ledger: %w", err))
		}
	}
	return nil
}

// rotate renames the active file to events.<millis>.jsonl, recreates an
// empty active file, and enforces count-based retention.
func rotate(ledgerPath string) error {
	millis := time.Now().UnixMilli()
	rotated := rotatedName(ledgerPath, millis)
	if err := os.Rename(ledgerPath, rotated); err != nil {
		return err
	}
	f, err := os.OpenFile(ledgerPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	f.Close()

	siblings, err := RotatedFiles(ledgerPath)
	if err != nil {
		return err
	}
	// Newest first by suffix; delete beyond the cap.
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].RotatedAt > siblings[j].RotatedAt })
	for _, s := range siblings[min(len(siblings), MaxRotated):] {
		os.Remove(s.Path)
	}
	return nil
}

func rotatedName(ledgerPath string, millis int64) string {
	dir := filepath.Dir(ledgerPath)
	stem := Stem(ledgerPath)
	return filepath.Join(dir, fmt.Sprintf("%s.%d.jsonl", stem, millis))
}

// Stem returns the active file's name without the .jsonl extension.
func Stem(ledgerPath string) string {
	return strings.TrimSuffix(filepath.Base(ledgerPath), ".jsonl")
}

// File is one ledger file with its rotation position. The active file
// carries RotatedAt = math.MaxInt64 so it sorts last.
type File struct {
	Path      string
	RotatedAt int64
}

const activeSentinel = int64(1<<63 - 1)

// RotatedFiles lists the rotated siblings of the active file, unsorted.
func RotatedFiles(ledgerPath string) ([]File, error) {
	dir := filepath.Dir(ledgerPath)
	stem := Stem(ledgerPath)
	re := regexp.MustCompile("^" + regexp.QuoteMeta(stem) + `\.(\d+)\.jsonl$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []File
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ts, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, File{Path: filepath.Join(dir, e.Name()), RotatedAt: ts})
	}
	return out, nil
}

// Files returns every ledger file in read order: rotated siblings oldest
// first, then the active file.
func Files(ledgerPath string) ([]File, error) {
	rotated, err := RotatedFiles(ledgerPath)
	if err != nil {
		return nil, err
	}
	sort.Slice(rotated, func(i, j int) bool { return rotated[i].RotatedAt < rotated[j].RotatedAt })
	return append(rotated, File{Path: ledgerPath, RotatedAt: activeSentinel}), nil
}

// Prune deletes rotated siblings whose rotation suffix is older than the
// given number of days. The active file is never touched.
func Prune(ledgerPath string, olderThanDays int) (int, error) {
	rotated, err := RotatedFiles(ledgerPath)
	if err != nil {
		return 0, model.E(model.KindLedger, err)
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UnixMilli()
	removed := 0
	for _, f := range rotated {
		if f.RotatedAt < cutoff {
			if err := os.Remove(f.Path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
