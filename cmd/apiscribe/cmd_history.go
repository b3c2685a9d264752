package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"apiscribe/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 lists all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled (history.enabled: false)")
	}
	db, err := history.Open(history.Config{Path: cfg.History.Path})
	if err != nil {
		return err
	}
	defer history.Close(db)
	repo := history.NewRepository(db)
	w := cmd.OutOrStdout()

	if len(args) == 1 {
		run, err := repo.Get(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run with id %s", args[0])
		}
		printRun(w, run)
		return nil
	}

	runs, err := repo.List(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	printRunTable(w, runs)
	return nil
}

func printRunTable(w io.Writer, runs []history.Run) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "When", "Source", "State", "Stage", "Tests", "Duration"})
	for _, r := range runs {
		tw.AppendRow(table.Row{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.SourcePath,
			r.State,
			failedLabel(r),
			runTestsLabel(r),
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
		})
	}
	tw.Render()
}

func printRun(w io.Writer, r *history.Run) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"ID", r.ID},
		{"When", r.CreatedAt.Local().Format(time.RFC3339)},
		{"Source", r.SourcePath},
		{"Tests file", r.TestPath},
		{"Docs file", r.DocsPath},
		{"Backend", r.Provider + " / " + r.Model},
		{"State", r.State},
		{"Failed at", failedLabel(*r)},
		{"Error", r.Error},
		{"Endpoints", r.Endpoints},
		{"Schemas", r.Schemas},
		{"Tests", runTestsLabel(*r)},
		{"Duration", (time.Duration(r.DurationMS) * time.Millisecond).String()},
	})
	tw.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func failedLabel(r history.Run) string {
	if r.FailedStage == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", r.FailedStage, r.ErrorKind)
}

func runTestsLabel(r history.Run) string {
	if !r.Verified {
		return "-"
	}
	return fmt.Sprintf("%s %d/%d (exit %d)", testsLabel(r.TestsPassed), r.Passed, r.Passed+r.Failed, r.ExitCode)
}
