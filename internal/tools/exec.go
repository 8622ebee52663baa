package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/ppiankov/vigilo/internal/model"
)

// killDelay is how long a cancelled subprocess gets between SIGTERM and
// SIGKILL.
const killDelay = 500 * time.Millisecond

// RunCommand runs a shell command under the per-call context. Cancellation
// sends SIGTERM, then SIGKILL after killDelay. Non-zero exit is reported in
// the output, not as an error; only spawn failures error.
func RunCommand(ctx context.Context, in RunCommandInput) (RunCommandOutput, error) {
	if in.Command == "" {
		return RunCommandOutput{}, model.Ef(model.KindSchema, "missing 'command'")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", in.Command)
	if in.Cwd != "" {
		cmd.Dir = in.Cwd
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := RunCommandOutput{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		if ctx.Err() != nil {
			return out, model.E(model.KindTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, model.E(model.KindSubprocess, err)
	}
	return out, nil
}
