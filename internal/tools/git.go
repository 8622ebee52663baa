package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/ppiankov/vigilo/internal/model"
)

func gitCmd(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killDelay

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return stdout.String(), stderr.String(), model.E(model.KindTimeout, ctx.Err())
	}
	return stdout.String(), stderr.String(), err
}

// GitStatus shows the short working-tree status.
func GitStatus(ctx context.Context, in GitStatusInput) (TextOutput, error) {
	out, stderr, err := gitCmd(ctx, in.Path, "status", "--short")
	if err != nil {
		return TextOutput{}, gitErr(err, stderr)
	}
	if strings.TrimSpace(out) == "" {
		out = "nothing to commit, working tree clean"
	}
	return TextOutput{Text: out}, nil
}

// GitDiff shows unstaged (or staged) changes.
func GitDiff(ctx context.Context, in GitDiffInput) (TextOutput, error) {
	args := []string{"diff"}
	if in.Staged {
		args = append(args, "--staged")
	}
	out, stderr, err := gitCmd(ctx, in.Path, args...)
	if err != nil {
		return TextOutput{}, gitErr(err, stderr)
	}
	if strings.TrimSpace(out) == "" {
		out = "no changes"
	}
	return TextOutput{Text: out}, nil
}

// GitLog shows recent commits, one line each.
func GitLog(ctx context.Context, in GitLogInput) (TextOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	out, stderr, err := gitCmd(ctx, in.Path, "log", fmt.Sprintf("-%d", limit), "--oneline", "--decorate")
	if err != nil {
		return TextOutput{}, gitErr(err, stderr)
	}
	if strings.TrimSpace(out) == "" {
		out = "no commits"
	}
	return TextOutput{Text: out}, nil
}

// GitCommit stages everything and commits.
func GitCommit(ctx context.Context, in GitCommitInput) (TextOutput, error) {
	if in.Message == "" {
		return TextOutput{}, model.Ef(model.KindSchema, "missing 'message'")
	}
	if _, stderr, err := gitCmd(ctx, in.Path, "add", "-A"); err != nil {
		return TextOutput{}, gitErr(err, stderr)
	}
	out, stderr, err := gitCmd(ctx, in.Path, "commit", "-m", in.Message)
	if err != nil {
		return TextOutput{}, gitErr(err, stderr)
	}
	return TextOutput{Text: strings.TrimSpace(out)}, nil
}

func gitErr(err error, stderr string) error {
	if k := model.KindOf(err); k == model.KindTimeout {
		return err
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	return model.Ef(model.KindSubprocess, "%s", msg)
}
