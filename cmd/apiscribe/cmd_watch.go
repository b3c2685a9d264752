package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apiscribe/internal/credentials"
	"apiscribe/internal/pipeline"
	"apiscribe/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <source.py>",
	Short: "Regenerate whenever the module changes",
	Long: `Runs the pipeline once, then again after every saved change to the module.
Runs never overlap; saves made during a run trigger one more run afterwards.
Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&genTestPath, "test", "", "Test module destination (default output.test_path)")
	watchCmd.Flags().StringVar(&genDocsPath, "docs", "", "Markdown destination (default output.docs_path)")
	watchCmd.Flags().BoolVar(&genNoRun, "no-run", false, "Write the artifacts without running the tests")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	env, err := newRunEnv(cfg, credentials.NewResolver())
	if err != nil {
		return err
	}
	defer env.close()
	if genNoRun {
		env.skipVerify = true
	}

	req := pipeline.Request{
		SourcePath: args[0],
		TestPath:   firstNonEmpty(genTestPath, cfg.Output.TestPath),
		DocsPath:   firstNonEmpty(genDocsPath, cfg.Output.DocsPath),
	}
	w := cmd.OutOrStdout()

	// --timeout bounds each run, not the whole session.
	runOnce := func(ctx context.Context, _ string) {
		ctx, cancel := withTimeout(ctx)
		defer cancel()
		fmt.Fprintf(w, "%s %s\n", okStyle.Render("apiscribe"), req.SourcePath)
		out, err := env.run(ctx, req, stagePrinter(w, ""))
		if err != nil {
			fmt.Fprintln(w, errorStyle.Render("error: ")+err.Error())
			return
		}
		printOutcome(w, out, false)
	}

	watcher, err := watch.New(cfg.GetWatchDebounce(), runOnce)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	if err := watcher.Add(req.SourcePath); err != nil {
		return err
	}

	runOnce(ctx, req.SourcePath)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, stageStyle.Render("watching for changes, Ctrl-C to stop"))

	select {
	case <-ctx.Done():
	case <-watcher.Done():
	}
	return nil
}
