package pipeline

import (
	"time"

	"apiscribe/internal/types"
)

// State is a step of the run state machine.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateComposing
	StateGenerating
	StateParsing
	StateWriting
	StateVerifying
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "Idle",
	StateAnalyzing:  "Analyzing",
	StateComposing:  "Composing",
	StateGenerating: "Generating",
	StateParsing:    "Parsing",
	StateWriting:    "Writing",
	StateVerifying:  "Verifying",
	StateDone:       "Done",
	StateFailed:     "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error // set when To is StateFailed
}

// Observer receives every transition of a run, in order, on the run's goroutine.
type Observer func(runID string, t Transition)

// Request names the input file and both output paths of a run.
type Request struct {
	SourcePath string
	TestPath   string
	DocsPath   string
}

// Outcome is the full report of a run.
type Outcome struct {
	RunID   string
	Request Request

	State       State
	FailedStage State
	Kind        types.ErrorKind
	Err         error
	Warnings    []string

	Transitions    []Transition
	StageDurations map[State]time.Duration
	StartedAt      time.Time
	FinishedAt     time.Time

	Analysis    *types.AnalysisResult
	Generation  *types.GenerationRequest
	Response    *types.GenerationResponse
	RawResponse string
	Artifacts   *types.ParsedArtifacts
	Report      *types.VerificationReport
}

// Failed reports whether the run ended in StateFailed.
func (o *Outcome) Failed() bool { return o.State == StateFailed }

// TestsPassed reports whether verification ran and the engine exited 0.
func (o *Outcome) TestsPassed() bool {
	return o.Report != nil && o.Report.Succeeded
}

// Duration is the wall time of the run.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
