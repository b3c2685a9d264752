// Package verify runs the generated test module once through the external
// test engine and reports the outcome. Success is derived from the exit
// status only; the output is captured for the operator.
package verify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// TestPlaceholder in a command argument is replaced with the test file path.
const TestPlaceholder = "{test}"

// Options configures the runner.
type Options struct {
	// Command is the engine argv. When no argument contains TestPlaceholder
	// the test path is appended.
	Command        []string
	WorkingDir     string
	Timeout        time.Duration
	MaxOutputBytes int64
	AllowedEnv     []string
	Env            []string
}

// DefaultOptions runs "python -m pytest -q" with a five minute timeout.
func DefaultOptions() Options {
	return Options{
		Command:        []string{"python", "-m", "pytest", "-q", TestPlaceholder},
		Timeout:        5 * time.Minute,
		MaxOutputBytes: DefaultMaxOutputBytes,
		AllowedEnv: []string{
			"PATH", "HOME", "VIRTUAL_ENV", "PYTHONPATH",
			"LANG", "LC_ALL", "TMPDIR", "USER",
		},
	}
}

// Runner invokes the test engine.
type Runner struct {
	opts     Options
	executor *Executor
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts, executor: &Executor{}}
}

// Verify runs the engine against testPath once.
func (r *Runner) Verify(ctx context.Context, testPath string) (types.VerificationReport, error) {
	if abs, err := filepath.Abs(testPath); err == nil {
		testPath = abs
	}

	cmd, err := r.command(testPath)
	if err != nil {
		return types.VerificationReport{}, err
	}

	logging.Verify("running %s", cmd)
	res, err := r.executor.Run(ctx, cmd)

	report := types.VerificationReport{Command: cmd.String(), ExitCode: -1}
	if res != nil {
		report.CombinedOutput = res.Output
		report.ExitCode = res.ExitCode
		report.Duration = res.Duration
		report.Truncated = res.Truncated
	}
	if err != nil {
		return report, err
	}

	report.Succeeded = report.ExitCode == 0
	report.Summary = ParseSummary(report.CombinedOutput)
	if report.Succeeded {
		logging.Verify("tests passed (%s)", report.Duration)
	} else {
		logging.VerifyWarn("tests failed with exit code %d", report.ExitCode)
	}
	return report, nil
}

func (r *Runner) command(testPath string) (Command, error) {
	argv := r.opts.Command
	if len(argv) == 0 {
		argv = DefaultOptions().Command
	}
	if strings.TrimSpace(argv[0]) == "" {
		return Command{}, &types.LaunchError{Command: strings.Join(argv, " "), Err: errors.New("empty engine binary")}
	}

	args := make([]string, 0, len(argv))
	substituted := false
	for _, a := range argv[1:] {
		if strings.Contains(a, TestPlaceholder) {
			a = strings.ReplaceAll(a, TestPlaceholder, testPath)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, testPath)
	}

	return Command{
		Binary:         argv[0],
		Args:           args,
		Dir:            r.opts.WorkingDir,
		AllowedEnv:     r.opts.AllowedEnv,
		Env:            r.opts.Env,
		Timeout:        r.opts.Timeout,
		MaxOutputBytes: r.opts.MaxOutputBytes,
	}, nil
}
