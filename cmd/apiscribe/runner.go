package main

import (
	"context"
	"fmt"
	"path/filepath"

	"apiscribe/internal/analyzer"
	"apiscribe/internal/artifact"
	"apiscribe/internal/config"
	"apiscribe/internal/credentials"
	"apiscribe/internal/generation"
	"apiscribe/internal/history"
	"apiscribe/internal/logging"
	"apiscribe/internal/pipeline"
	"apiscribe/internal/prompt"
	"apiscribe/internal/verify"
)

// runEnv holds what every run of a command shares: the config, the resolved
// credential and the history ledger.
type runEnv struct {
	cfg        *config.Config
	apiKey     string
	skipVerify bool
	history    history.Repository
	close      func()
}

// newRunEnv resolves the credential and opens the history database.
func newRunEnv(c *config.Config, resolver *credentials.Resolver) (*runEnv, error) {
	key, src, err := resolver.Resolve(c.LLM.Provider, c.LLM.APIKey)
	if err != nil {
		return nil, err
	}
	logging.BootDebug("credential source for %s: %s", c.LLM.Provider, src)

	env := &runEnv{cfg: c, apiKey: key, skipVerify: c.Verify.Skip, close: func() {}}
	if c.History.Enabled {
		db, err := history.Open(history.Config{Path: c.History.Path})
		if err != nil {
			// The ledger is optional; a broken database never blocks a run.
			logging.HistoryWarn("history disabled: %v", err)
		} else {
			env.history = history.NewRepository(db)
			env.close = func() { _ = history.Close(db) }
		}
	}
	return env, nil
}

// newPipeline builds a fresh set of components for one source file.
func (e *runEnv) newPipeline(sourcePath string, observers ...pipeline.Observer) (*pipeline.Pipeline, error) {
	c := e.cfg
	model := c.LLM.ResolvedModel()

	composer, err := prompt.NewComposer(prompt.Options{
		Model:               model,
		Temperature:         c.LLM.Temperature,
		MaxOutputTokens:     c.LLM.MaxOutputTokens,
		Delimiters:          c.Prompt.Delimiters,
		SystemTemplatePath:  c.Prompt.SystemTemplate,
		RequestTemplatePath: c.Prompt.RequestTemplate,
	})
	if err != nil {
		return nil, err
	}

	client, err := generation.NewClient(generation.Config{
		Provider:   generation.Provider(c.LLM.Provider),
		Model:      model,
		APIKey:     e.apiKey,
		BaseURL:    c.LLM.BaseURL,
		Timeout:    c.GetLLMTimeout(),
		ReplayFile: c.LLM.ReplayFile,
	})
	if err != nil {
		return nil, err
	}

	splitter := artifact.NewSplitter(c.Prompt.Delimiters)
	splitter.StripCodeFences = c.Output.StripCodeFences

	comps := pipeline.Components{
		Analyzer: analyzer.New(analyzer.Options{
			AppIdentifiers: c.Analyzer.AppIdentifiers,
			SchemaBase:     c.Analyzer.SchemaBase,
		}),
		Composer: composer,
		Client:   client,
		Splitter: splitter,
		Writer:   artifact.NewWriter(),
	}
	if !e.skipVerify {
		workDir := c.Verify.WorkingDir
		if workDir == "" {
			// The generated module imports the source by name.
			workDir = filepath.Dir(sourcePath)
		}
		comps.Verifier = verify.NewRunner(verify.Options{
			Command:        c.Verify.Command,
			WorkingDir:     workDir,
			Timeout:        c.GetVerifyTimeout(),
			MaxOutputBytes: int64(c.Verify.MaxOutputBytes),
			AllowedEnv:     c.Verify.AllowedEnvVars,
		})
	}

	return pipeline.New(comps, pipeline.Policy{
		AllowEmptyAnalysis: !c.Analyzer.Strict,
		SkipVerify:         e.skipVerify,
	}, observers...)
}

// run executes one pipeline and records it.
func (e *runEnv) run(ctx context.Context, req pipeline.Request, observers ...pipeline.Observer) (*pipeline.Outcome, error) {
	p, err := e.newPipeline(req.SourcePath, observers...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up run for %s: %w", req.SourcePath, err)
	}
	out := p.Run(ctx, req)
	e.record(out)
	return out, nil
}

func (e *runEnv) record(out *pipeline.Outcome) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(history.NewRun(out, e.cfg.LLM.Provider, e.cfg.LLM.ResolvedModel())); err != nil {
		logging.HistoryWarn("failed to record run %s: %v", out.RunID, err)
	}
}

// exitCode maps an outcome to the process exit status.
func exitCode(out *pipeline.Outcome) int {
	switch {
	case out.Failed():
		return exitFailed
	case out.Report != nil && !out.Report.Succeeded:
		return exitTestsFailed
	default:
		return exitOK
	}
}
