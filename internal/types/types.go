// Package types provides the shared data model for the apiscribe pipeline.
// Every stage receives one of these values and produces a new one; none of them
// is mutated after construction, so stages never share mutable state.
package types

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// HTTP METHODS
// =============================================================================

// HTTPMethod is the closed set of route verbs the analyzer recognizes.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodPatch   HTTPMethod = "PATCH"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
)

var knownMethods = map[string]HTTPMethod{
	"get":     MethodGet,
	"post":    MethodPost,
	"put":     MethodPut,
	"delete":  MethodDelete,
	"patch":   MethodPatch,
	"head":    MethodHead,
	"options": MethodOptions,
}

// ParseHTTPMethod maps a decorator attribute name (e.g. "get") to its method.
// Names outside the known set report false and must be ignored by callers.
func ParseHTTPMethod(name string) (HTTPMethod, bool) {
	m, ok := knownMethods[strings.ToLower(name)]
	return m, ok
}

// =============================================================================
// ANALYSIS
// =============================================================================

// Param is one handler parameter as written in the source.
type Param struct {
	Name       string `json:"name"`
	Annotation string `json:"annotation,omitempty"`
	Default    string `json:"default,omitempty"`
}

// EndpointDescriptor describes one discovered route.
type EndpointDescriptor struct {
	Path             string     `json:"path"`
	Method           HTTPMethod `json:"method"`
	HandlerName      string     `json:"handler_name"`
	RawDecoratorText string     `json:"raw_decorator_text"`

	Async            bool    `json:"async,omitempty"`
	Params           []Param `json:"params,omitempty"`
	ReturnAnnotation string  `json:"return_annotation,omitempty"`
	Docstring        string  `json:"docstring,omitempty"`
	Line             int     `json:"line"`
}

// Route returns "METHOD path".
func (e EndpointDescriptor) Route() string {
	return fmt.Sprintf("%s %s", e.Method, e.Path)
}

// Field is an annotated attribute of a schema class.
type Field struct {
	Name       string `json:"name"`
	Annotation string `json:"annotation"`
	Default    string `json:"default,omitempty"`
}

// SchemaDescriptor captures one data-model class definition.
type SchemaDescriptor struct {
	RawDefinitionText string `json:"raw_definition_text"`

	Name   string   `json:"name"`
	Bases  []string `json:"bases,omitempty"`
	Fields []Field  `json:"fields,omitempty"`
	Line   int      `json:"line"`
}

// AnalysisResult is the structured description of one source file.
// Endpoints and Schemas are in source order.
type AnalysisResult struct {
	SourcePath string               `json:"source_path"`
	Endpoints  []EndpointDescriptor `json:"endpoints"`
	Schemas    []SchemaDescriptor   `json:"schemas"`
}

// IsEmpty reports whether no routes were discovered.
func (a AnalysisResult) IsEmpty() bool {
	return len(a.Endpoints) == 0
}

// =============================================================================
// GENERATION
// =============================================================================

// Role is a chat message role understood by every backend.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role/content pair sent to the generation backend.
type Message struct {
	Role    Role
	Content string
}

// GenerationRequest is built once from an AnalysisResult and passed by value.
type GenerationRequest struct {
	Prompt          string
	System          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Messages returns the ordered role/content pairs for the request.
// The system message is omitted when empty.
func (r GenerationRequest) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(r.System) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.System})
	}
	return append(msgs, Message{Role: RoleUser, Content: r.Prompt})
}

// GenerationResponse is the raw backend answer. It is opaque until split.
type GenerationResponse struct {
	RawText  string
	Provider string
	Model    string
	Duration time.Duration
}

// ParsedArtifacts holds both extracted segments. Either both are set or the
// value is not produced at all.
type ParsedArtifacts struct {
	TestCode              string
	DocumentationMarkdown string
}

// =============================================================================
// VERIFICATION
// =============================================================================

// TestSummary is the informational tally scraped from test-engine output.
// It never decides success; the exit status does.
type TestSummary struct {
	Passed      int      `json:"passed"`
	Failed      int      `json:"failed"`
	Errors      int      `json:"errors"`
	Skipped     int      `json:"skipped"`
	FailedTests []string `json:"failed_tests,omitempty"`
}

// Total returns the number of tests the engine reported on.
func (s TestSummary) Total() int {
	return s.Passed + s.Failed + s.Errors + s.Skipped
}

// VerificationReport is the outcome of running the generated tests once.
type VerificationReport struct {
	Succeeded      bool          `json:"succeeded"`
	CombinedOutput string        `json:"combined_output"`
	ExitCode       int           `json:"exit_code"`
	Command        string        `json:"command"`
	Duration       time.Duration `json:"duration"`
	Truncated      bool          `json:"truncated,omitempty"`
	Summary        *TestSummary  `json:"summary,omitempty"`
}
