package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// Command is one process invocation.
type Command struct {
	Binary string
	Args   []string
	Dir    string

	// AllowedEnv names the variables copied from the current environment.
	AllowedEnv []string
	// Env holds extra KEY=VALUE pairs appended after the allowlisted ones.
	Env []string

	Timeout        time.Duration
	MaxOutputBytes int64
}

// String renders the command line for logs and reports.
func (c Command) String() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a process that started and exited on its own.
type Result struct {
	ExitCode       int
	Output         string // stdout and stderr interleaved in arrival order
	Truncated      bool
	TruncatedBytes int64
	Duration       time.Duration
}

// Executor runs commands directly on the host.
type Executor struct {
	// WaitDelay bounds how long Run waits for output pipes after the process
	// is killed or exits while children still hold them.
	WaitDelay time.Duration
}

// DefaultMaxOutputBytes caps captured output when a command sets no limit.
const DefaultMaxOutputBytes = 1 << 20

// Run starts cmd and waits for it. A non-zero exit is reported in Result,
// not as an error. Failing to start, or being killed by the deadline, is a
// *types.LaunchError.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryVerify, "execute "+cmd.Binary)
	defer timer.Stop()

	if cmd.Binary == "" {
		return nil, &types.LaunchError{Command: cmd.String(), Err: errors.New("binary is required")}
	}

	execCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = buildEnvironment(cmd.AllowedEnv, cmd.Env)
	execCmd.WaitDelay = e.WaitDelay
	if execCmd.WaitDelay == 0 {
		execCmd.WaitDelay = 2 * time.Second
	}

	maxOutput := cmd.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}
	var buf bytes.Buffer
	combined := &limitedWriter{w: &buf, max: maxOutput}
	// The same comparable writer on both streams serializes the writes.
	execCmd.Stdout = combined
	execCmd.Stderr = combined

	logging.VerifyDebug("executing: %s (dir=%s, timeout=%s)", cmd, cmd.Dir, cmd.Timeout)
	start := time.Now()
	err := execCmd.Run()

	result := &Result{
		ExitCode:       -1,
		Output:         buf.String(),
		Truncated:      combined.truncated,
		TruncatedBytes: combined.discarded,
		Duration:       time.Since(start),
	}
	if result.Truncated {
		logging.VerifyWarn("output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	if err != nil {
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			logging.VerifyWarn("killed (timeout): %s after %s", cmd.Binary, cmd.Timeout)
			return result, &types.LaunchError{Command: cmd.String(), Err: fmt.Errorf("timeout after %s: %w", cmd.Timeout, execCtx.Err())}
		case errors.Is(execCtx.Err(), context.Canceled):
			logging.VerifyDebug("canceled: %s", cmd.Binary)
			return result, &types.LaunchError{Command: cmd.String(), Err: execCtx.Err()}
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.ExitCode < 0 {
				// Killed by a signal we did not send: the run happened and failed.
				result.ExitCode = signalExitCode(exitErr)
				logging.VerifyWarn("terminated by signal: %s -> %d (%v)", cmd.Binary, result.ExitCode, err)
				return result, nil
			}
			logging.VerifyDebug("exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
			return result, nil
		}

		logging.VerifyError("failed to start %s: %v", cmd.Binary, err)
		return result, &types.LaunchError{Command: cmd.String(), Err: err}
	}

	result.ExitCode = 0
	logging.Verify("completed: %s -> exit=0, duration=%s, output=%d bytes", cmd.Binary, result.Duration, len(result.Output))
	return result, nil
}

// signalExitCode maps a signal death to the shell convention 128+signal,
// or -1 when the status carries no signal.
func signalExitCode(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return -1
}

// buildEnvironment creates the environment variable list.
func buildEnvironment(allowed, extra []string) []string {
	env := make([]string, 0, len(allowed)+len(extra))
	for _, key := range allowed {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}
	return append(env, extra...)
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
