// Package bridge is the synchronous one-shot request/response channel between
// the gate and the outside world: approved shell commands, and auxiliary tool
// servers spoken to over a line-based JSON protocol.
//
// Every call takes a context and is bounded by a timeout; a hung subprocess
// surfaces as a deadline error, not a hang.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kazz187/agentgate/pkg/cerr"
)

// DefaultTimeout bounds a single bridge call.
const DefaultTimeout = 5 * time.Minute

// InvokeResult holds the captured output of a finished subprocess.
type InvokeResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Bridge spawns subprocesses one at a time. There is no persistent
// connection and no multiplexing; each call owns its process lifetime.
type Bridge struct {
	timeout time.Duration
	shell   string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithShell overrides the shell used for command execution.
func WithShell(shell string) Option {
	return func(b *Bridge) { b.shell = shell }
}

func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{
		timeout: DefaultTimeout,
		shell:   "/bin/sh",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke runs a shell command synchronously in dir and captures its output.
// A non-zero exit is an execution failure carrying stderr as detail; hitting
// the timeout is a deadline error.
func (b *Bridge) Invoke(ctx context.Context, command, dir string) (*InvokeResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, b.shell, "-c", command)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	stdout, stderr, err := runCaptured(cmd)
	if ctxErr := execCtx.Err(); ctxErr != nil {
		// Parent cancellation (an interrupted action) is not a timeout.
		if errors.Is(ctxErr, context.Canceled) {
			return nil, cerr.NewError(cerr.Canceled, "command canceled", ctxErr)
		}
		return nil, cerr.NewError(cerr.DeadlineExceeded,
			fmt.Sprintf("command did not finish within %s", b.timeout), ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &InvokeResult{
					Stdout:   stdout,
					Stderr:   stderr,
					ExitCode: exitErr.ExitCode(),
				}, cerr.NewError(cerr.Aborted,
					fmt.Sprintf("command exited with status %d: %s", exitErr.ExitCode(), firstLine(stderr)), err)
		}
		return nil, cerr.NewError(cerr.Aborted, "command failed to run", err)
	}

	return &InvokeResult{Stdout: stdout, Stderr: stderr, ExitCode: 0}, nil
}

// runCaptured starts the command and drains stdout and stderr concurrently
// so a chatty subprocess cannot deadlock on a full pipe.
func runCaptured(cmd *exec.Cmd) (stdout, stderr string, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", "", err
	}

	var outBuf, errBuf bytes.Buffer
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		_, _ = io.Copy(&outBuf, stdoutPipe)
	})
	wg.Go(func() {
		_, _ = io.Copy(&errBuf, stderrPipe)
	})
	wg.Wait()

	err = cmd.Wait()
	return outBuf.String(), errBuf.String(), err
}

func firstLine(s string) string {
	if idx := bytes.IndexByte([]byte(s), '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
