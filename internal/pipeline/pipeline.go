// Package pipeline sequences analysis, composition, generation, splitting,
// writing and verification as a strictly linear state machine. Each state
// makes exactly one component call; the first failure ends the run in
// StateFailed and nothing is retried.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apiscribe/internal/artifact"
	"apiscribe/internal/generation"
	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// Analyzer extracts the structured description of a source file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) (types.AnalysisResult, error)
}

// Composer builds the generation request.
type Composer interface {
	Compose(result types.AnalysisResult) (types.GenerationRequest, error)
}

// Splitter extracts artifacts from raw backend text.
type Splitter interface {
	Split(raw string) (types.ParsedArtifacts, error)
}

// Writer persists artifacts.
type Writer interface {
	Write(a types.ParsedArtifacts, dest artifact.Destinations) error
}

// Verifier runs the generated tests once.
type Verifier interface {
	Verify(ctx context.Context, testPath string) (types.VerificationReport, error)
}

// Components are the collaborators of one pipeline. Verifier may be nil
// when Policy.SkipVerify is set.
type Components struct {
	Analyzer Analyzer
	Composer Composer
	Client   generation.Client
	Splitter Splitter
	Writer   Writer
	Verifier Verifier
}

// Policy holds the run-level decisions left open by the components.
type Policy struct {
	// AllowEmptyAnalysis continues with an empty description when no
	// endpoints are found. When false the run fails at Analyzing.
	AllowEmptyAnalysis bool

	// SkipVerify ends the run after Writing.
	SkipVerify bool
}

// DefaultPolicy continues on empty analysis and runs the tests.
func DefaultPolicy() Policy {
	return Policy{AllowEmptyAnalysis: true}
}

// Pipeline runs the state machine. It keeps no per-run state; build one per
// run anyway so components are never shared between concurrent runs.
type Pipeline struct {
	c         Components
	policy    Policy
	observers []Observer
	now       func() time.Time
	newID     func() string
}

// New creates a pipeline.
func New(c Components, policy Policy, observers ...Observer) (*Pipeline, error) {
	switch {
	case c.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case c.Composer == nil:
		return nil, errors.New("pipeline: composer is required")
	case c.Client == nil:
		return nil, errors.New("pipeline: generation client is required")
	case c.Splitter == nil:
		return nil, errors.New("pipeline: splitter is required")
	case c.Writer == nil:
		return nil, errors.New("pipeline: writer is required")
	case c.Verifier == nil && !policy.SkipVerify:
		return nil, errors.New("pipeline: verifier is required unless verification is skipped")
	}
	return &Pipeline{
		c:         c,
		policy:    policy,
		observers: observers,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// run carries the mutable bookkeeping of a single Run call.
type run struct {
	p         *Pipeline
	out       *Outcome
	log       *logging.Logger
	enteredAt time.Time
}

func (r *run) transition(to State, err error) {
	now := r.p.now()
	from := r.out.State
	if from != StateIdle {
		r.out.StageDurations[from] += now.Sub(r.enteredAt)
	}
	t := Transition{From: from, To: to, At: now, Err: err}
	r.out.State = to
	r.out.Transitions = append(r.out.Transitions, t)
	r.enteredAt = now

	r.log.Debug("%s -> %s", from, to)
	for _, obs := range r.p.observers {
		obs(r.out.RunID, t)
	}
}

// fail moves the run to StateFailed from the current state.
func (r *run) fail(err error) *Outcome {
	return r.failAt(r.out.State, err)
}

// failAt records stage as the failing one. A run canceled between stages
// fails at the stage it was about to enter.
func (r *run) failAt(stage State, err error) *Outcome {
	r.out.FailedStage = stage
	r.out.Kind = types.KindOf(err)
	r.out.Err = err
	r.transition(StateFailed, err)
	r.out.FinishedAt = r.p.now()
	logging.PipelineError("run %s failed at %s (%s): %v", r.out.RunID, r.out.FailedStage, r.out.Kind, err)
	return r.out
}

// enter checks for cancellation, then moves to the next stage.
func (r *run) enter(ctx context.Context, to State) bool {
	if err := ctx.Err(); err != nil {
		r.failAt(to, fmt.Errorf("%w before %s: %w", types.ErrCanceled, to, err))
		return false
	}
	r.transition(to, nil)
	return true
}

// Run executes one full pass over req. It always returns an Outcome in a
// terminal state.
func (p *Pipeline) Run(ctx context.Context, req Request) *Outcome {
	out := &Outcome{
		RunID:          p.newID(),
		Request:        req,
		State:          StateIdle,
		StageDurations: make(map[State]time.Duration),
		StartedAt:      p.now(),
	}
	r := &run{p: p, out: out, log: logging.Get(logging.CategoryPipeline).With("run_id", out.RunID), enteredAt: out.StartedAt}

	if req.SourcePath == "" || req.TestPath == "" || req.DocsPath == "" {
		return r.fail(errors.New("source, test and docs paths are required"))
	}
	logging.Pipeline("run %s: %s -> %s, %s", out.RunID, req.SourcePath, req.TestPath, req.DocsPath)

	// Analyzing
	if !r.enter(ctx, StateAnalyzing) {
		return out
	}
	analysis, err := p.c.Analyzer.AnalyzeFile(ctx, req.SourcePath)
	if err != nil {
		if !errors.Is(err, types.ErrAnalysisEmpty) || !p.policy.AllowEmptyAnalysis {
			return r.fail(err)
		}
		out.Warnings = append(out.Warnings, err.Error())
		r.log.Warn("continuing without endpoints: %v", err)
	}
	out.Analysis = &analysis

	// Composing
	if !r.enter(ctx, StateComposing) {
		return out
	}
	genReq, err := p.c.Composer.Compose(analysis)
	if err != nil {
		return r.fail(err)
	}
	out.Generation = &genReq

	// Generating
	if !r.enter(ctx, StateGenerating) {
		return out
	}
	resp, err := p.c.Client.Generate(ctx, genReq)
	if err != nil {
		return r.fail(err)
	}
	out.Response = &resp
	out.RawResponse = resp.RawText

	// Parsing
	if !r.enter(ctx, StateParsing) {
		return out
	}
	parsed, err := p.c.Splitter.Split(resp.RawText)
	if err != nil {
		return r.fail(err)
	}
	out.Artifacts = &parsed

	// Writing
	if !r.enter(ctx, StateWriting) {
		return out
	}
	if err := p.c.Writer.Write(parsed, artifact.Destinations{TestPath: req.TestPath, DocsPath: req.DocsPath}); err != nil {
		return r.fail(err)
	}

	// Verifying
	if !p.policy.SkipVerify {
		if !r.enter(ctx, StateVerifying) {
			return out
		}
		report, err := p.c.Verifier.Verify(ctx, req.TestPath)
		if err != nil {
			return r.fail(err)
		}
		out.Report = &report
	}

	r.transition(StateDone, nil)
	out.FinishedAt = p.now()
	logging.Pipeline("run %s done in %s (tests passed: %v)", out.RunID, out.Duration(), out.TestsPassed())
	return out
}
