// Package analyzer extracts routes and data schemas from a FastAPI-style Python
// source file using a Tree-sitter syntax tree.
//
// A route is a function carrying a call decorator of the form
// @<app>.<verb>("<path>", ...) where <app> is one of the configured application
// identifiers and <verb> is a recognized HTTP method. A schema is a class whose
// base list names the configured marker (BaseModel by default), either bare or
// as the last segment of a dotted name.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"apiscribe/internal/logging"
	"apiscribe/internal/types"
)

// Options controls what the analyzer recognizes.
type Options struct {
	// AppIdentifiers are the root names whose attribute calls declare routes.
	AppIdentifiers []string

	// SchemaBase is the unqualified base class name that marks a schema.
	SchemaBase string
}

// DefaultOptions returns the FastAPI conventions: app and BaseModel.
func DefaultOptions() Options {
	return Options{
		AppIdentifiers: []string{"app"},
		SchemaBase:     "BaseModel",
	}
}

// Analyzer is read-only over its inputs and safe for concurrent use.
type Analyzer struct {
	apps       map[string]bool
	schemaBase string
}

// New creates an analyzer. Empty option fields fall back to DefaultOptions.
func New(opts Options) *Analyzer {
	def := DefaultOptions()
	if len(opts.AppIdentifiers) == 0 {
		opts.AppIdentifiers = def.AppIdentifiers
	}
	if opts.SchemaBase == "" {
		opts.SchemaBase = def.SchemaBase
	}

	apps := make(map[string]bool, len(opts.AppIdentifiers))
	for _, id := range opts.AppIdentifiers {
		apps[id] = true
	}
	return &Analyzer{apps: apps, schemaBase: opts.SchemaBase}
}

// AnalyzeFile reads path and analyzes its contents.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (types.AnalysisResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.AnalysisResult{SourcePath: path}, &types.ParseError{Path: path, Message: "read source", Err: err}
	}
	return a.Analyze(ctx, path, content)
}

// Analyze parses content and returns the discovered endpoints and schemas in
// declaration order. A result without endpoints is returned together with
// types.ErrAnalysisEmpty so the caller can decide whether to continue.
func (a *Analyzer) Analyze(ctx context.Context, path string, content []byte) (types.AnalysisResult, error) {
	timer := logging.StartTimer(logging.CategoryAnalyzer, "analyze "+filepath.Base(path))
	defer timer.Stop()

	result := types.AnalysisResult{SourcePath: path}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		logging.AnalyzerError("parse failed: %s - %v", path, err)
		return result, &types.ParseError{Path: path, Message: "tree-sitter parse failed", Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		perr := &types.ParseError{Path: path, Message: "syntax error"}
		if bad := firstErrorNode(root); bad != nil {
			pos := bad.StartPoint()
			perr.Line = int(pos.Row) + 1
			perr.Column = int(pos.Column) + 1
			if bad.IsMissing() {
				perr.Message = fmt.Sprintf("missing %s", bad.Type())
			}
		}
		logging.AnalyzerWarn("%v", perr)
		return result, perr
	}

	w := &walker{analyzer: a, src: content}
	w.walk(root)
	result.Endpoints = w.endpoints
	result.Schemas = w.schemas

	logging.Analyzer("analyzed %s: %d endpoints, %d schemas", filepath.Base(path), len(result.Endpoints), len(result.Schemas))

	if result.IsEmpty() {
		return result, fmt.Errorf("%s: %w", path, types.ErrAnalysisEmpty)
	}
	return result, nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

// walker accumulates descriptors during a pre-order traversal.
type walker struct {
	analyzer  *Analyzer
	src       []byte
	endpoints []types.EndpointDescriptor
	schemas   []types.SchemaDescriptor
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.src[n.StartByte():n.EndByte()])
}

func (w *walker) walk(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch child.Type() {
		case "decorated_definition":
			def := child.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			switch def.Type() {
			case "function_definition":
				w.visitFunction(child, def)
			case "class_definition":
				w.visitClass(child, def)
			}
			w.walk(def)

		case "class_definition":
			w.visitClass(child, child)
			w.walk(child)

		default:
			w.walk(child)
		}
	}
}

// visitFunction records the first recognized route decorator of a function.
func (w *walker) visitFunction(decorated, fn *sitter.Node) {
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		dec := decorated.NamedChild(i)
		if dec.Type() != "decorator" {
			continue
		}
		method, path, ok := w.routeDecorator(dec)
		if !ok {
			continue
		}
		w.endpoints = append(w.endpoints, w.describeEndpoint(dec, fn, method, path))
		return
	}
}

// routeDecorator recognizes @<app>.<verb>(...). The path is empty when the
// first positional argument is not a plain string literal.
func (w *walker) routeDecorator(dec *sitter.Node) (types.HTTPMethod, string, bool) {
	if dec.NamedChildCount() == 0 {
		return "", "", false
	}
	call := dec.NamedChild(0)
	if call.Type() != "call" {
		return "", "", false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return "", "", false
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil || obj.Type() != "identifier" || !w.analyzer.apps[w.text(obj)] {
		return "", "", false
	}

	method, ok := types.ParseHTTPMethod(w.text(attr))
	if !ok {
		logging.AnalyzerDebug("ignoring decorator %s at line %d", w.text(fn), dec.StartPoint().Row+1)
		return "", "", false
	}

	var path string
	if args := call.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if arg.Type() == "keyword_argument" || arg.Type() == "comment" {
				continue
			}
			if lit, ok := stringLiteral(w.text(arg), arg.Type()); ok {
				path = lit
			}
			break
		}
	}
	return method, path, true
}

func (w *walker) describeEndpoint(dec, fn *sitter.Node, method types.HTTPMethod, path string) types.EndpointDescriptor {
	ep := types.EndpointDescriptor{
		Path:             path,
		Method:           method,
		RawDecoratorText: w.text(dec),
		Line:             int(dec.StartPoint().Row) + 1,
	}
	if name := fn.ChildByFieldName("name"); name != nil {
		ep.HandlerName = w.text(name)
	}
	if first := fn.Child(0); first != nil && first.Type() == "async" {
		ep.Async = true
	}
	if params := fn.ChildByFieldName("parameters"); params != nil {
		ep.Params = w.parameters(params)
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		ep.ReturnAnnotation = w.text(ret)
	}
	ep.Docstring = w.docstring(fn.ChildByFieldName("body"))
	return ep
}

func (w *walker) parameters(params *sitter.Node) []types.Param {
	var out []types.Param
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		var param types.Param

		switch p.Type() {
		case "identifier":
			param.Name = w.text(p)
		case "typed_parameter":
			if p.NamedChildCount() > 0 {
				param.Name = w.text(p.NamedChild(0))
			}
			if t := p.ChildByFieldName("type"); t != nil {
				param.Annotation = w.text(t)
			}
		case "default_parameter", "typed_default_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				param.Name = w.text(n)
			}
			if t := p.ChildByFieldName("type"); t != nil {
				param.Annotation = w.text(t)
			}
			if v := p.ChildByFieldName("value"); v != nil {
				param.Default = w.text(v)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			param.Name = w.text(p)
		default:
			continue
		}

		if param.Name == "self" || param.Name == "cls" {
			continue
		}
		out = append(out, param)
	}
	return out
}

// docstring returns the unquoted leading string statement of a block.
func (w *walker) docstring(body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	lit, ok := stringLiteral(w.text(str), str.Type())
	if !ok {
		return ""
	}
	return strings.TrimSpace(lit)
}

// visitClass records a schema when the class derives from the marker base.
// outer is the decorated_definition when present so decorators are kept in
// the raw text.
func (w *walker) visitClass(outer, class *sitter.Node) {
	supers := class.ChildByFieldName("superclasses")
	if supers == nil {
		return
	}

	var bases []string
	isSchema := false
	for i := 0; i < int(supers.NamedChildCount()); i++ {
		base := supers.NamedChild(i)
		if base.Type() == "keyword_argument" {
			continue
		}
		text := w.text(base)
		bases = append(bases, text)

		switch base.Type() {
		case "identifier":
			isSchema = isSchema || text == w.analyzer.schemaBase
		case "attribute":
			if attr := base.ChildByFieldName("attribute"); attr != nil {
				isSchema = isSchema || w.text(attr) == w.analyzer.schemaBase
			}
		}
	}
	if !isSchema {
		return
	}

	schema := types.SchemaDescriptor{
		RawDefinitionText: w.text(outer),
		Bases:             bases,
		Line:              int(outer.StartPoint().Row) + 1,
	}
	if name := class.ChildByFieldName("name"); name != nil {
		schema.Name = w.text(name)
	}
	if body := class.ChildByFieldName("body"); body != nil {
		schema.Fields = w.fields(body)
	}
	w.schemas = append(w.schemas, schema)
}

// fields collects annotated assignments directly in a class body.
func (w *walker) fields(body *sitter.Node) []types.Field {
	var out []types.Field
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		typ := assign.ChildByFieldName("type")
		if left == nil || typ == nil || left.Type() != "identifier" {
			continue
		}
		field := types.Field{Name: w.text(left), Annotation: w.text(typ)}
		if right := assign.ChildByFieldName("right"); right != nil {
			field.Default = w.text(right)
		}
		out = append(out, field)
	}
	return out
}

// stringLiteral unquotes a plain (non-formatted, non-bytes, non-concatenated)
// Python string literal. Escape sequences are kept as written.
func stringLiteral(text, nodeType string) (string, bool) {
	if nodeType != "string" {
		return "", false
	}
	prefixEnd := strings.IndexAny(text, `"'`)
	if prefixEnd < 0 {
		return "", false
	}
	if strings.ContainsAny(text[:prefixEnd], "fFbB") {
		return "", false
	}
	body := text[prefixEnd:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}
