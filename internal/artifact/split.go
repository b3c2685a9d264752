// Package artifact extracts the generated test module and documentation from
// a backend response and persists them.
package artifact

import (
	"fmt"
	"strings"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// Splitter extracts both segments using the delimiter contract. It is
// all-or-nothing: any violation yields a *types.FormatError and no artifacts.
type Splitter struct {
	Delimiters types.Delimiters

	// StripCodeFences removes one Markdown code fence wrapping the test segment.
	StripCodeFences bool
}

// NewSplitter returns a splitter for d.
func NewSplitter(d types.Delimiters) *Splitter {
	return &Splitter{Delimiters: d}
}

// Split locates the four tokens by exact substring search and returns the
// trimmed text between each pair.
func (s *Splitter) Split(raw string) (types.ParsedArtifacts, error) {
	d := s.Delimiters

	test, err := between(raw, d.TestStart, d.TestEnd)
	if err != nil {
		return types.ParsedArtifacts{}, s.fail(raw, "test code: "+err.Error())
	}
	docs, err := between(raw, d.DocsStart, d.DocsEnd)
	if err != nil {
		return types.ParsedArtifacts{}, s.fail(raw, "documentation: "+err.Error())
	}

	if s.StripCodeFences {
		test = stripFence(test)
	}
	if test == "" {
		return types.ParsedArtifacts{}, s.fail(raw, "test code segment is empty")
	}

	logging.ArtifactDebug("split response: test=%d bytes docs=%d bytes", len(test), len(docs))
	return types.ParsedArtifacts{TestCode: test, DocumentationMarkdown: docs}, nil
}

func (s *Splitter) fail(raw, reason string) error {
	logging.ArtifactWarn("response violates delimiter contract: %s (%d bytes)", reason, len(raw))
	return &types.FormatError{Reason: reason, RawText: raw}
}

// between returns the trimmed text between the first start and the first end
// token. A start token that occurs after its end token is an error.
func between(raw, start, end string) (string, error) {
	i := strings.Index(raw, start)
	if i < 0 {
		return "", fmt.Errorf("missing %q", start)
	}
	j := strings.Index(raw, end)
	if j < 0 {
		return "", fmt.Errorf("missing %q", end)
	}
	from := i + len(start)
	if j < from {
		return "", fmt.Errorf("%q appears after %q", start, end)
	}
	seg := strings.TrimSpace(raw[from:j])
	if seg == "" {
		return "", fmt.Errorf("segment between %q and %q is empty", start, end)
	}
	return seg, nil
}

// stripFence removes a single ``` fence (with optional info string) that wraps
// the whole segment.
func stripFence(seg string) string {
	if !strings.HasPrefix(seg, "```") || !strings.HasSuffix(seg, "```") || len(seg) < 6 {
		return seg
	}
	nl := strings.IndexByte(seg, '\n')
	if nl < 0 {
		return seg
	}
	inner := seg[nl+1 : len(seg)-3]
	return strings.TrimSpace(inner)
}
