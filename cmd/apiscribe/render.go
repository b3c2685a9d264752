package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"apiscribe/internal/pipeline"
)

var (
	accent     = lipgloss.Color("#8BC34A")
	danger     = lipgloss.Color("#e53935")
	warning    = lipgloss.Color("#FFC107")
	muted      = lipgloss.Color("#6b7280")
	stageStyle = lipgloss.NewStyle().Foreground(muted)
	okStyle    = lipgloss.NewStyle().Foreground(accent).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(warning)
	outputBox  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1)
)

// stagePrinter returns an observer that prints each stage as it starts.
func stagePrinter(w io.Writer, label string) pipeline.Observer {
	return func(_ string, t pipeline.Transition) {
		if t.To.Terminal() {
			return
		}
		prefix := ""
		if label != "" {
			prefix = label + ": "
		}
		fmt.Fprintln(w, stageStyle.Render("  "+prefix+t.To.String()+"..."))
	}
}

// printOutcome writes the final report of a run.
func printOutcome(w io.Writer, out *pipeline.Outcome, showOutput bool) {
	for _, warn := range out.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: ")+warn)
	}

	if out.Failed() {
		fmt.Fprintf(w, "%s failed at %s (%s): %v\n",
			errorStyle.Render("✗"), out.FailedStage, kindLabel(out), out.Err)
		if out.FailedStage == pipeline.StateParsing && out.RawResponse != "" {
			fmt.Fprintln(w, outputBox.Render(truncate(out.RawResponse, 2000)))
		}
		return
	}

	fmt.Fprintf(w, "%s wrote %s and %s\n", okStyle.Render("✓"), out.Request.TestPath, out.Request.DocsPath)
	if out.Analysis != nil {
		fmt.Fprintf(w, "  %d endpoints, %d schemas\n", len(out.Analysis.Endpoints), len(out.Analysis.Schemas))
	}

	r := out.Report
	if r == nil {
		fmt.Fprintln(w, stageStyle.Render("  verification skipped"))
		return
	}
	summary := fmt.Sprintf("exit code %d", r.ExitCode)
	if r.Summary != nil {
		summary = fmt.Sprintf("%d passed, %d failed, %d errors, %d skipped (exit code %d)",
			r.Summary.Passed, r.Summary.Failed, r.Summary.Errors, r.Summary.Skipped, r.ExitCode)
	}
	if r.Succeeded {
		fmt.Fprintf(w, "%s tests passed: %s in %s\n", okStyle.Render("✓"), summary, r.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "%s tests failed: %s\n", errorStyle.Render("✗"), summary)
		if r.Summary != nil {
			for _, name := range r.Summary.FailedTests {
				fmt.Fprintln(w, "    "+name)
			}
		}
	}
	if r.Truncated {
		fmt.Fprintln(w, warnStyle.Render("  engine output truncated"))
	}
	if showOutput || !r.Succeeded {
		fmt.Fprintln(w, outputBox.Render(strings.TrimRight(r.CombinedOutput, "\n")))
	}
}

func kindLabel(out *pipeline.Outcome) string {
	if out.Kind == "" {
		return "unknown"
	}
	return string(out.Kind)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n..."
}

// renderMarkdown renders md for the terminal, falling back to the raw text.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
