package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"apiscribe/internal/credentials"
	"apiscribe/internal/logging"
	"apiscribe/internal/pipeline"
)

var (
	batchConcurrency int
	batchNoRun       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <source.py>...",
	Short: "Run independent pipelines for several modules",
	Long: `Each module gets its own pipeline. Artifacts go to
<output.tests_dir>/test_<name>.py and <output.docs_dir>/<name>.md.
A failure in one module does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchConcurrency, "jobs", "j", 0, "Concurrent runs (default batch.concurrency)")
	batchCmd.Flags().BoolVar(&batchNoRun, "no-run", false, "Write the artifacts without running the tests")
}

// batchRequests derives per-file destinations. Two sources with the same
// file name would overwrite each other and are rejected.
func batchRequests(sources []string, testsDir, docsDir string) ([]pipeline.Request, error) {
	seen := make(map[string]string, len(sources))
	reqs := make([]pipeline.Request, 0, len(sources))
	for _, src := range sources {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		if prev, ok := seen[stem]; ok {
			return nil, fmt.Errorf("%s and %s would write the same artifacts", prev, src)
		}
		seen[stem] = src
		reqs = append(reqs, pipeline.Request{
			SourcePath: src,
			TestPath:   filepath.Join(testsDir, "test_"+stem+".py"),
			DocsPath:   filepath.Join(docsDir, stem+".md"),
		})
	}
	return reqs, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	reqs, err := batchRequests(args, cfg.Output.TestsDir, cfg.Output.DocsDir)
	if err != nil {
		return err
	}
	env, err := newRunEnv(cfg, credentials.NewResolver())
	if err != nil {
		return err
	}
	defer env.close()
	if batchNoRun {
		env.skipVerify = true
	}

	limit := batchConcurrency
	if limit <= 0 {
		limit = cfg.Batch.Concurrency
	}

	w := cmd.OutOrStdout()
	var printMu sync.Mutex
	outcomes := make([]*pipeline.Outcome, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			runCtx, cancel := withTimeout(ctx)
			defer cancel()
			out, err := env.run(runCtx, req)
			if err != nil {
				return err
			}
			outcomes[i] = out
			printMu.Lock()
			defer printMu.Unlock()
			if out.Failed() {
				fmt.Fprintf(w, "%s %s\n", errorStyle.Render("✗"), req.SourcePath)
			} else {
				fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), req.SourcePath)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printBatchTable(w, outcomes)

	code := exitOK
	for _, out := range outcomes {
		code = max(code, exitCode(out))
	}
	logging.Pipeline("batch of %d finished with exit code %d", len(outcomes), code)
	if code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

func printBatchTable(w io.Writer, outcomes []*pipeline.Outcome) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Source", "State", "Stage", "Tests", "Duration"})
	for _, out := range outcomes {
		stage, tests := "", "-"
		if out.Failed() {
			stage = fmt.Sprintf("%s (%s)", out.FailedStage, kindLabel(out))
		}
		if out.Report != nil {
			tests = testsLabel(out.Report.Succeeded)
		}
		tw.AppendRow(table.Row{out.Request.SourcePath, out.State, stage, tests, out.Duration().Round(time.Millisecond)})
	}
	tw.Render()
}

func testsLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
