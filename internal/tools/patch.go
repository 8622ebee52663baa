package tools

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/vigilo/internal/model"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

type hunk struct {
	oldStart int
	lines    []string
}

// PatchFile applies a unified diff to a file. Hunk offsets are validated
// against the current content before anything is written; a mismatch leaves
// the file untouched.
func PatchFile(ctx context.Context, in PatchFileInput) (StatusOutput, error) {
	if in.Path == "" || in.UnifiedDiff == "" {
		return StatusOutput{}, model.Ef(model.KindSchema, "missing 'path' or 'unified_diff'")
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return StatusOutput{}, readErr(err)
	}

	hunks, err := parseHunks(in.UnifiedDiff)
	if err != nil {
		return StatusOutput{}, err
	}

	trailingNewline := strings.HasSuffix(string(data), "\n")
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(data) == 0 {
		lines = nil
	}

	patched, err := applyHunks(lines, hunks)
	if err != nil {
		return StatusOutput{}, err
	}

	out := strings.Join(patched, "\n")
	if trailingNewline && out != "" {
		out += "\n"
	}
	if err := os.WriteFile(in.Path, []byte(out), 0o644); err != nil {
		return StatusOutput{}, model.E(model.KindIO, err)
	}
	return StatusOutput{Status: "patched " + in.Path}, nil
}

func parseHunks(diff string) ([]hunk, error) {
	var hunks []hunk
	var cur *hunk
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			start, _ := strconv.Atoi(m[1])
			hunks = append(hunks, hunk{oldStart: start})
			cur = &hunks[len(hunks)-1]
			continue
		}
		if cur == nil {
			continue
		}
		if line == "" && len(cur.lines) > 0 {
			continue // trailing blank after the last hunk
		}
		switch {
		case strings.HasPrefix(line, " "), strings.HasPrefix(line, "-"), strings.HasPrefix(line, "+"):
			cur.lines = append(cur.lines, line)
		case line == "":
			cur.lines = append(cur.lines, " ")
		default:
			return nil, model.Ef(model.KindParse, "malformed diff line %q", line)
		}
	}
	if len(hunks) == 0 {
		return nil, model.Ef(model.KindParse, "no hunks in diff")
	}
	return hunks, nil
}

func applyHunks(lines []string, hunks []hunk) ([]string, error) {
	var out []string
	pos := 0 // 0-based index into lines
	for _, h := range hunks {
		start := h.oldStart - 1
		if start < pos || start > len(lines) {
			return nil, model.Ef(model.KindParse, "hunk offset %d out of range", h.oldStart)
		}
		out = append(out, lines[pos:start]...)
		pos = start
		for _, hl := range h.lines {
			tag, body := hl[0], hl[1:]
			switch tag {
			case ' ':
				if pos >= len(lines) || lines[pos] != body {
					return nil, hunkMismatch(pos, body, lines)
				}
				out = append(out, body)
				pos++
			case '-':
				if pos >= len(lines) || lines[pos] != body {
					return nil, hunkMismatch(pos, body, lines)
				}
				pos++
			case '+':
				out = append(out, body)
			}
		}
	}
	out = append(out, lines[pos:]...)
	return out, nil
}

func hunkMismatch(pos int, want string, lines []string) error {
	got := "<eof>"
	if pos < len(lines) {
		got = lines[pos]
	}
	return model.Ef(model.KindParse, "hunk mismatch at line %d: expected %q, found %q",
		pos+1, want, got)
}
