package tools

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/vigilo/internal/model"
)

// searchMaxMatches caps how many hits a single search returns.
const searchMaxMatches = 1000

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "target": true, ".venv": true,
}

// SearchFiles walks the tree under root and reports lines matching the
// pattern, as a substring by default or as a regular expression.
func SearchFiles(ctx context.Context, in SearchFilesInput) (SearchFilesOutput, error) {
	if in.Root == "" || in.Pattern == "" {
		return SearchFilesOutput{}, model.Ef(model.KindSchema, "missing 'root' or 'pattern'")
	}
	var re *regexp.Regexp
	if in.Regex {
		var err error
		re, err = regexp.Compile(in.Pattern)
		if err != nil {
			return SearchFilesOutput{}, model.Ef(model.KindSchema, "invalid regex: %v", err)
		}
	}

	out := SearchFilesOutput{Matches: []SearchMatch{}}
	err := filepath.WalkDir(in.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if len(out.Matches) >= searchMaxMatches {
			return filepath.SkipAll
		}
		searchFile(path, in.Pattern, re, &out)
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return out, model.E(model.KindTimeout, ctx.Err())
	}
	return out, nil
}

func searchFile(path, pattern string, re *regexp.Regexp, out *SearchFilesOutput) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.ContainsRune(line, '\x00') {
			return // binary file
		}
		hit := false
		if re != nil {
			hit = re.MatchString(line)
		} else {
			hit = strings.Contains(line, pattern)
		}
		if hit {
			out.Matches = append(out.Matches, SearchMatch{Path: path, Line: lineNo, Match: line})
			if len(out.Matches) >= searchMaxMatches {
				return
			}
		}
	}
}
