package types

import (
	"fmt"
	"strings"
)

// Delimiters is the wire contract between the request composer and the
// response splitter. Both sides must be built from the same value.
type Delimiters struct {
	TestStart string `yaml:"test_start" validate:"required"`
	TestEnd   string `yaml:"test_end" validate:"required"`
	DocsStart string `yaml:"docs_start" validate:"required"`
	DocsEnd   string `yaml:"docs_end" validate:"required"`
}

// DefaultDelimiters returns the standard marker tokens.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		TestStart: "### TEST_CODE_START ###",
		TestEnd:   "### TEST_CODE_END ###",
		DocsStart: "### DOCS_START ###",
		DocsEnd:   "### DOCS_END ###",
	}
}

// Tokens returns the four tokens in search order.
func (d Delimiters) Tokens() []string {
	return []string{d.TestStart, d.TestEnd, d.DocsStart, d.DocsEnd}
}

// Validate rejects blank tokens and tokens that contain one another, since
// either would make substring search ambiguous.
func (d Delimiters) Validate() error {
	tokens := d.Tokens()
	for i, tok := range tokens {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("delimiter %d is empty", i)
		}
		for j := 0; j < i; j++ {
			if strings.Contains(tok, tokens[j]) || strings.Contains(tokens[j], tok) {
				return fmt.Errorf("delimiters %q and %q overlap", tokens[j], tok)
			}
		}
	}
	return nil
}
