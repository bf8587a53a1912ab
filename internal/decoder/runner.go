package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"soundcheck/internal/deps"
)

const (
	// stderrTailBytes bounds how much ffmpeg stderr is kept for error messages.
	stderrTailBytes = 4096
	// waitDelay bounds how long Wait blocks on stdio copies after the child exits.
	waitDelay = 2 * time.Second
)

// Command is one child process invocation.
type Command struct {
	Path  string
	Args  []string
	Stdin io.Reader
	// Timeout overrides the runner default when positive.
	Timeout time.Duration
}

// Result carries what a finished child produced.
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// ProcessRunner runs child processes. Implementations must honour ctx.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec and a hard wall-clock timeout that
// kills the child's whole process group.
type ExecRunner struct {
	Timeout time.Duration
}

// Run executes cmd. A non-zero exit is reported both in Result.ExitCode and
// as a returned error.
func (r ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	path, err := deps.ResolveBinary(c.Path)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, c.Args...) //nolint:gosec
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	cmd.Stdin = c.Stdin
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.String(), ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if runErr != nil {
		// ffmpeg stops reading once it has -t seconds; a stdin copy still
		// blocked on the network then trips WaitDelay after a clean exit.
		if res.ExitCode == 0 && errors.Is(runErr, exec.ErrWaitDelay) {
			return res, nil
		}
		return res, runErr
	}
	return res, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
