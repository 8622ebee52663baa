// Package tools implements the fixed vigilo capability catalog: typed
// inputs and outputs for the fourteen MCP tools and their handlers. The
// capture pipeline around them lives in internal/mcpserver.
package tools

// --- Input/Output types ---

// ReadFileInput defines parameters for the read_file tool.
type ReadFileInput struct {
	Path      string `json:"path" jsonschema:"file path to read"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"first line to read (1-indexed, inclusive)"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"last line to read (1-indexed, inclusive)"`
}

// ReadFileOutput carries the file content, numbered when a range was asked.
type ReadFileOutput struct {
	Content string `json:"content"`
}

// WriteFileInput defines parameters for the write_file tool.
type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"file path to write"`
	Content string `json:"content" jsonschema:"full file content"`
}

// WriteFileOutput reports the written size.
type WriteFileOutput struct {
	BytesWritten int `json:"bytes_written"`
}

// ListDirectoryInput defines parameters for the list_directory tool.
type ListDirectoryInput struct {
	Path string `json:"path" jsonschema:"directory to list"`
}

// DirEntry is one directory listing row.
type DirEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ListDirectoryOutput holds the sorted entries.
type ListDirectoryOutput struct {
	Entries []DirEntry `json:"entries"`
}

// CreateDirectoryInput defines parameters for the create_directory tool.
type CreateDirectoryInput struct {
	Path string `json:"path" jsonschema:"directory to create (parents included)"`
}

// DeleteFileInput defines parameters for the delete_file tool.
type DeleteFileInput struct {
	Path string `json:"path" jsonschema:"file to delete"`
}

// MoveFileInput defines parameters for the move_file tool.
type MoveFileInput struct {
	From string `json:"from" jsonschema:"source path"`
	To   string `json:"to" jsonschema:"destination path"`
}

// StatusOutput is the generic ok acknowledgement for mutating file tools.
type StatusOutput struct {
	Status string `json:"status"`
}

// SearchFilesInput defines parameters for the search_files tool.
type SearchFilesInput struct {
	Root    string `json:"root" jsonschema:"directory to search under"`
	Pattern string `json:"pattern" jsonschema:"text or regular expression to find"`
	Regex   bool   `json:"regex,omitempty" jsonschema:"treat pattern as a regular expression"`
}

// SearchMatch is one search hit.
type SearchMatch struct {
	Path  string `json:"path"`
	Line  int    `json:"line"`
	Match string `json:"match"`
}

// SearchFilesOutput lists the hits.
type SearchFilesOutput struct {
	Matches []SearchMatch `json:"matches"`
}

// RunCommandInput defines parameters for the run_command tool.
type RunCommandInput struct {
	Command string `json:"command" jsonschema:"shell command to run"`
	Cwd     string `json:"cwd,omitempty" jsonschema:"working directory"`
}

// RunCommandOutput carries the captured process output.
type RunCommandOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// GetFileInfoInput defines parameters for the get_file_info tool.
type GetFileInfoInput struct {
	Path string `json:"path" jsonschema:"file or directory to stat"`
}

// GetFileInfoOutput is the stat result.
type GetFileInfoOutput struct {
	Size  int64  `json:"size"`
	Kind  string `json:"kind"`
	MTime string `json:"mtime"`
}

// PatchFileInput defines parameters for the patch_file tool.
type PatchFileInput struct {
	Path        string `json:"path" jsonschema:"file to patch"`
	UnifiedDiff string `json:"unified_diff" jsonschema:"unified diff to apply"`
}

// GitStatusInput defines parameters for the git_status tool.
type GitStatusInput struct {
	Path string `json:"path,omitempty" jsonschema:"repository directory (default: cwd)"`
}

// GitDiffInput defines parameters for the git_diff tool.
type GitDiffInput struct {
	Path   string `json:"path,omitempty" jsonschema:"repository directory (default: cwd)"`
	Staged bool   `json:"staged,omitempty" jsonschema:"show staged changes instead"`
}

// GitLogInput defines parameters for the git_log tool.
type GitLogInput struct {
	Path  string `json:"path,omitempty" jsonschema:"repository directory (default: cwd)"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of commits (default: 10)"`
}

// GitCommitInput defines parameters for the git_commit tool.
type GitCommitInput struct {
	Path    string `json:"path,omitempty" jsonschema:"repository directory (default: cwd)"`
	Message string `json:"message" jsonschema:"commit message"`
}

// TextOutput wraps plain command output.
type TextOutput struct {
	Text string `json:"text"`
}

// Descriptions maps catalog tool names to their MCP descriptions.
var Descriptions = map[string]string{
	"read_file":        "Read the contents of a file, optionally limited to a line range",
	"write_file":       "Write content to a file, creating it if it does not exist",
	"list_directory":   "List entries inside a directory",
	"create_directory": "Create a directory and any missing parent directories",
	"delete_file":      "Delete a file",
	"move_file":        "Move or rename a file or directory",
	"search_files":     "Search for a text pattern across files in a directory",
	"run_command":      "Run a shell command and return its stdout and stderr",
	"get_file_info":    "Get metadata for a file or directory (size, type, modified time)",
	"patch_file":       "Apply a unified diff patch to a file",
	"git_status":       "Show the working tree status of a git repository",
	"git_diff":         "Show unstaged changes in a git repository",
	"git_log":          "Show recent commits in a git repository",
	"git_commit":       "Stage all changes and create a git commit with the given message",
}
