// Command apiscribe analyzes a FastAPI module, asks a generation backend for a
// pytest suite and Markdown reference, writes both and runs the tests once.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"apiscribe/internal/config"
	"apiscribe/internal/logging"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// Exit codes.
const (
	exitOK          = 0
	exitFailed      = 1 // the run ended in Failed
	exitTestsFailed = 2 // the run finished but the generated tests did not pass
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "apiscribe",
	Short: "Generate and verify pytest suites and API docs for FastAPI modules",
	Long: `apiscribe reads a FastAPI source file, describes its routes and pydantic
schemas to a text-generation backend, and writes the returned pytest module
and Markdown reference. The generated tests are then run once and the result
is reported.

Credentials are taken from llm.api_key, then OPENAI_API_KEY, ANTHROPIC_API_KEY
or GEMINI_API_KEY, then the OS keyring (see "apiscribe keys").`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "apiscribe %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall timeout per run (0 disables)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads .env and the config file, then initializes logging.
func setup() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Logging.Level = "debug"
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(loaded.Logging.Options()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg = loaded
	logging.Boot("apiscribe %s, provider %s, model %s", version, cfg.LLM.Provider, cfg.LLM.ResolvedModel())
	return nil
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// withTimeout applies --timeout to ctx.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// commandContext combines signalContext and withTimeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signalContext(cmd)
	tctx, cancel := withTimeout(ctx)
	return tctx, func() {
		cancel()
		stop()
	}
}

func execute(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
	return exitFailed
}

func main() {
	os.Exit(execute(os.Args[1:]))
}
