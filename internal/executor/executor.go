package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

var log = logging.L("executor")

const (
	// DefaultTimeout bounds one-shot probe commands when Command.Timeout is unset.
	DefaultTimeout = 5 * time.Second

	// MaxOutputSize is the maximum size of stdout/stderr to capture.
	// pw-dump on a busy graph runs to a few megabytes.
	MaxOutputSize = 16 * 1024 * 1024

	// waitDelay bounds how long Wait keeps copying output after the process
	// has exited, in case a grandchild still holds the pipes open.
	waitDelay = time.Second
)

// ErrTimeout is returned by Runner.Run when the command outlives its timeout.
var ErrTimeout = errors.New("executor: command timed out")

// Command describes an external tool invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string // appended to the host environment
	Timeout time.Duration
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// Result is the outcome of a command that ran to completion. A non-zero
// exit status is reported through ExitCode, not as an error.
type Result struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Truncated bool
	Duration  time.Duration
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Runner runs short-lived commands and collects their output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes cmd and waits for it. The returned error is non-nil only when
// the process could not be started, timed out, or failed to be waited on.
func (ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	outW := &limitedWriter{buf: &stdout, limit: MaxOutputSize}
	cmd.Stdout = outW
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: MaxOutputSize}

	// Set process group so a timed-out tool takes its children with it.
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: outW.truncated(),
		Duration:  time.Since(start),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.ExitCode = -1
			log.Debug("command timed out", "command", c.Name, "timeout", timeout)
			return result, fmt.Errorf("%w: %s after %s", ErrTimeout, c.Name, timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("executor: run %s: %w", c.Name, err)
	}

	return result, nil
}

// limitedWriter wraps a buffer with a size limit
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

func (w *limitedWriter) Write(p []byte) (n int, err error) {
	if w.written >= w.limit {
		// Discard additional data but don't error
		w.written += len(p)
		return len(p), nil
	}

	remaining := w.limit - w.written
	orig := len(p)
	if len(p) > remaining {
		p = p[:remaining]
	}

	n, err = w.buf.Write(p)
	w.written += orig
	return orig, err // Return original length to avoid short write errors
}

func (w *limitedWriter) truncated() bool {
	return w.written > w.limit
}
