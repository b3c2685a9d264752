// Package prompt turns an analysis result into a single generation request.
// The instruction templates are baked into the binary and may be overridden
// from disk; either way the rendered request always carries the delimiter
// contract the response splitter expects.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

const (
	systemTemplateName  = "templates/system.tmpl"
	requestTemplateName = "templates/request.tmpl"
)

// Options configures the composer.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Delimiters      types.Delimiters

	// Optional override files; empty uses the embedded templates.
	SystemTemplatePath  string
	RequestTemplatePath string
}

// DefaultOptions returns temperature 0.1, 4096 output tokens and the standard
// delimiters. Model is left for the caller.
func DefaultOptions() Options {
	return Options{
		Temperature:     0.1,
		MaxOutputTokens: 4096,
		Delimiters:      types.DefaultDelimiters(),
	}
}

// Composer renders generation requests. It holds only parsed templates and is
// safe for concurrent use.
type Composer struct {
	opts    Options
	system  *template.Template
	request *template.Template
}

// templateData is what the request template sees.
type templateData struct {
	Module     string
	SourcePath string
	Endpoints  []types.EndpointDescriptor
	Schemas    []types.SchemaDescriptor
	Delimiters types.Delimiters
}

var funcs = template.FuncMap{
	"inc":    func(i int) int { return i + 1 },
	"params": formatParams,
}

// NewComposer parses the templates and validates the delimiter contract.
func NewComposer(opts Options) (*Composer, error) {
	if opts.Delimiters == (types.Delimiters{}) {
		opts.Delimiters = types.DefaultDelimiters()
	}
	if err := opts.Delimiters.Validate(); err != nil {
		return nil, fmt.Errorf("invalid delimiters: %w", err)
	}
	if opts.MaxOutputTokens <= 0 {
		return nil, fmt.Errorf("max output tokens must be positive, got %d", opts.MaxOutputTokens)
	}

	system, err := loadTemplate("system", systemTemplateName, opts.SystemTemplatePath)
	if err != nil {
		return nil, err
	}
	request, err := loadTemplate("request", requestTemplateName, opts.RequestTemplatePath)
	if err != nil {
		return nil, err
	}

	return &Composer{opts: opts, system: system, request: request}, nil
}

func loadTemplate(name, embedded, override string) (*template.Template, error) {
	var (
		text []byte
		err  error
	)
	if override != "" {
		text, err = os.ReadFile(override)
		logging.PromptDebug("using %s template override %s", name, override)
	} else {
		text, err = embeddedTemplates.ReadFile(embedded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s template: %w", name, err)
	}

	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	return tmpl, nil
}

// Compose builds the request for result. It is deterministic: the same result
// always yields the same request.
func (c *Composer) Compose(result types.AnalysisResult) (types.GenerationRequest, error) {
	data := templateData{
		Module:     moduleName(result.SourcePath),
		SourcePath: result.SourcePath,
		Endpoints:  result.Endpoints,
		Schemas:    result.Schemas,
		Delimiters: c.opts.Delimiters,
	}

	var system, user bytes.Buffer
	if err := c.system.Execute(&system, data); err != nil {
		return types.GenerationRequest{}, fmt.Errorf("failed to render system template: %w", err)
	}
	if err := c.request.Execute(&user, data); err != nil {
		return types.GenerationRequest{}, fmt.Errorf("failed to render request template: %w", err)
	}

	prompt := user.String()
	for _, tok := range c.opts.Delimiters.Tokens() {
		if !strings.Contains(prompt, tok) {
			return types.GenerationRequest{}, fmt.Errorf("request template does not state delimiter %q", tok)
		}
	}

	logging.PromptDebug("composed request for %s: %d endpoints, %d schemas, %d bytes",
		data.Module, len(result.Endpoints), len(result.Schemas), len(prompt))

	return types.GenerationRequest{
		Prompt:          prompt,
		System:          strings.TrimSpace(system.String()),
		Model:           c.opts.Model,
		Temperature:     c.opts.Temperature,
		MaxOutputTokens: c.opts.MaxOutputTokens,
	}, nil
}

// Delimiters returns the contract this composer states.
func (c *Composer) Delimiters() types.Delimiters {
	return c.opts.Delimiters
}

// moduleName returns the import name of a Python source file.
func moduleName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "main"
	}
	return name
}

func formatParams(params []types.Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := p.Name
		if p.Annotation != "" {
			s += ": " + p.Annotation
		}
		if p.Default != "" {
			if p.Annotation != "" {
				s += " = " + p.Default
			} else {
				s += "=" + p.Default
			}
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}
