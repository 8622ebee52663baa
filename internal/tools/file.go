package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/vigilo/internal/model"
)

// ReadFile returns file content, numbered per line when a range is given.
func ReadFile(ctx context.Context, in ReadFileInput) (ReadFileOutput, error) {
	if in.Path == "" {
		return ReadFileOutput{}, model.Ef(model.KindSchema, "missing 'path'")
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return ReadFileOutput{}, readErr(err)
	}
	content := string(data)
	if in.StartLine <= 1 && in.EndLine == 0 {
		return ReadFileOutput{Content: content}, nil
	}

	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	start := in.StartLine
	if start < 1 {
		start = 1
	}
	if start > len(lines) {
		start = len(lines) + 1
	}
	end := in.EndLine
	if end == 0 || end > len(lines) {
		end = len(lines)
	}
	var sb strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&sb, "%d: %s\n", i, lines[i-1])
	}
	return ReadFileOutput{Content: strings.TrimSuffix(sb.String(), "\n")}, nil
}

// WriteFile writes content, creating parent directories as needed.
func WriteFile(ctx context.Context, in WriteFileInput) (WriteFileOutput, error) {
	if in.Path == "" {
		return WriteFileOutput{}, model.Ef(model.KindSchema, "missing 'path'")
	}
	if parent := filepath.Dir(in.Path); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return WriteFileOutput{}, model.E(model.KindIO, err)
		}
	}
	if err := os.WriteFile(in.Path, []byte(in.Content), 0o644); err != nil {
		return WriteFileOutput{}, model.E(model.KindIO, err)
	}
	return WriteFileOutput{BytesWritten: len(in.Content)}, nil
}

// ListDirectory lists entries sorted by name with a kind per entry.
func ListDirectory(ctx context.Context, in ListDirectoryInput) (ListDirectoryOutput, error) {
	if in.Path == "" {
		return ListDirectoryOutput{}, model.Ef(model.KindSchema, "missing 'path'")
	}
	entries, err := os.ReadDir(in.Path)
	if err != nil {
		return ListDirectoryOutput{}, readErr(err)
	}
	out := ListDirectoryOutput{Entries: make([]DirEntry, 0, len(entries))}
	for _, e := range entries {
		kind := "file"
		switch {
		case e.IsDir():
			kind = "directory"
		case e.Type()&os.ModeSymlink != 0:
			kind = "symlink"
		case !e.Type().IsRegular():
			kind = "other"
		}
		out.Entries = append(out.Entries, DirEntry{Name: e.Name(), Kind: kind})
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].Name < out.Entries[j].Name })
	return out, nil
}

// CreateDirectory makes the directory and any missing parents.
func CreateDirectory(ctx context.Context, in CreateDirectoryInput) (StatusOutput, error) {
	if in.Path == "" {
		return StatusOutput{}, model.Ef(model.KindSchema, "missing 'path'")
	}
	if err := os.MkdirAll(in.Path, 0o755); err != nil {
		return StatusOutput{}, model.E(model.KindIO, err)
	}
	return StatusOutput{Status: "created " + in.Path}, nil
}

// DeleteFile removes a single file.
func DeleteFile(ctx context.Context, in DeleteFileInput) (StatusOutput, error) {
	if in.Path == "" {
		return StatusOutput{}, model.Ef(model.KindSchema, "missing 'path'")
	}
	if err := os.Remove(in.Path); err != nil {
		return StatusOutput{}, readErr(err)
	}
	return StatusOutput{Status: "deleted " + in.Path}, nil
}

// MoveFile renames a file or directory.
func MoveFile(ctx context.Context, in MoveFileInput) (StatusOutput, error) {
	if in.From == "" || in.To == "" {
		return StatusOutput{}, model.Ef(model.KindSchema, "missing 'from' or 'to'")
	}
	if err := os.Rename(in.From, in.To); err != nil {
		return StatusOutput{}, readErr(err)
	}
	return StatusOutput{Status: fmt.Sprintf("moved %s -> %s", in.From, in.To)}, nil
}

// GetFileInfo stats a path.
func GetFileInfo(ctx context.Context, in GetFileInfoInput) (GetFileInfoOutput, error) {
	if in.Path == "" {
		return GetFileInfoOutput{}, model.Ef(model.KindSchema, "missing 'path'")
	}
	info, err := os.Stat(in.Path)
	if err != nil {
		return GetFileInfoOutput{}, readErr(err)
	}
	kind := "other"
	switch {
	case info.IsDir():
		kind = "directory"
	case info.Mode().IsRegular():
		kind = "file"
	}
	return GetFileInfoOutput{
		Size:  info.Size(),
		Kind:  kind,
		MTime: info.ModTime().UTC().Format("2006-01-02T15:04:05.000Z"),
	}, nil
}

func readErr(err error) error {
	if os.IsNotExist(err) {
		return model.E(model.KindNotFound, err)
	}
	if os.IsPermission(err) {
		return model.E(model.KindForbiddenPath, err)
	}
	return model.E(model.KindIO, err)
}
