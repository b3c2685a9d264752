package types

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline error kinds.
var (
	// ErrParse is returned when the input source is not valid Python.
	ErrParse = errors.New("parse error")

	// ErrAnalysisEmpty is returned alongside a result that contains no routes.
	ErrAnalysisEmpty = errors.New("no endpoints found")

	// ErrGeneration is returned for any failure calling the generation backend.
	ErrGeneration = errors.New("generation failure")

	// ErrFormat is returned when the backend output breaks the delimiter contract.
	ErrFormat = errors.New("format error")

	// ErrWrite is returned when an artifact cannot be persisted.
	ErrWrite = errors.New("write error")

	// ErrLaunch is returned when the test engine cannot be started.
	ErrLaunch = errors.New("launch error")

	// ErrCanceled is returned when a run is aborted between stages.
	ErrCanceled = errors.New("run canceled")
)

// Generation failure causes. A GenerationError matches exactly one of these
// in addition to ErrGeneration.
var (
	ErrNetwork        = errors.New("network error")
	ErrAuthentication = errors.New("authentication error")
	ErrService        = errors.New("service error")
)

// ParseError reports malformed or unreadable source.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// GenerationError wraps a backend failure with its cause.
type GenerationError struct {
	Provider string
	Cause    error // ErrNetwork, ErrAuthentication or ErrService
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Cause, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// FormatError reports a response that does not honour the delimiter contract.
// RawText is kept verbatim so the caller can surface it.
type FormatError struct {
	Reason  string
	RawText string
}

func (e *FormatError) Error() string {
	return "format error: " + e.Reason
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// WriteError reports a filesystem failure while persisting an artifact.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// LaunchError reports that the test engine could not be started or was
// killed before it produced an exit status.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

// ErrorKind names an error class for reporting.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindParse         ErrorKind = "parse"
	KindAnalysisEmpty ErrorKind = "analysis_empty"
	KindGeneration    ErrorKind = "generation"
	KindFormat        ErrorKind = "format"
	KindWrite         ErrorKind = "write"
	KindLaunch        ErrorKind = "launch"
	KindCanceled      ErrorKind = "canceled"
	KindUnknown       ErrorKind = "unknown"
)

// KindOf classifies err. A nil error has KindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrAnalysisEmpty):
		return KindAnalysisEmpty
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrWrite):
		return KindWrite
	case errors.Is(err, ErrLaunch):
		return KindLaunch
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}
