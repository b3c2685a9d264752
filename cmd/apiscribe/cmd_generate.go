package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apiscribe/internal/credentials"
	"apiscribe/internal/pipeline"
)

var (
	genTestPath   string
	genDocsPath   string
	genNoRun      bool
	genStrict     bool
	genPreview    bool
	genShowOutput bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <source.py>",
	Short: "Generate tests and docs for one FastAPI module",
	Long: `Runs the full pipeline once: analyze the module, compose the request, call the
backend, split the answer, write both artifacts and run the tests.

Exit status is 0 when the tests pass, 1 when the run fails and 2 when the
generated tests fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genTestPath, "test", "", "Test module destination (default output.test_path)")
	generateCmd.Flags().StringVar(&genDocsPath, "docs", "", "Markdown destination (default output.docs_path)")
	generateCmd.Flags().BoolVar(&genNoRun, "no-run", false, "Write the artifacts without running the tests")
	generateCmd.Flags().BoolVar(&genStrict, "strict", false, "Fail when no endpoints are found")
	generateCmd.Flags().BoolVar(&genPreview, "preview", false, "Render the generated docs in the terminal")
	generateCmd.Flags().BoolVar(&genShowOutput, "show-output", false, "Print the test engine output even when tests pass")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if genStrict {
		cfg.Analyzer.Strict = true
	}
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
	if _, err := os.Stat(req.SourcePath); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s\n", okStyle.Render("apiscribe"), req.SourcePath)
	out, err := env.run(ctx, req, stagePrinter(w, ""))
	if err != nil {
		return err
	}

	printOutcome(w, out, genShowOutput)
	if genPreview && out.Artifacts != nil {
		fmt.Fprint(w, renderMarkdown(out.Artifacts.DocumentationMarkdown))
	}
	if code := exitCode(out); code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
