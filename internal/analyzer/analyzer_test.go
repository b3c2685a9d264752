package analyzer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscribe/internal/types"
)

func analyzeFixture(t *testing.T, name string) (types.AnalysisResult, error) {
	t.Helper()
	return New(DefaultOptions()).AnalyzeFile(context.Background(), filepath.Join("testdata", name))
}

func TestAnalyze_ItemsScenario(t *testing.T) {
	result, err := analyzeFixture(t, "items.py")
	require.NoError(t, err)

	require.Len(t, result.Endpoints, 1)
	require.Len(t, result.Schemas, 1)

	ep := result.Endpoints[0]
	assert.Equal(t, "/items/{item_id}", ep.Path)
	assert.Equal(t, types.MethodGet, ep.Method)
	assert.Equal(t, "read_item", ep.HandlerName)
	assert.Equal(t, `@app.get("/items/{item_id}")`, ep.RawDecoratorText)
	assert.Equal(t, []types.Param{{Name: "item_id", Annotation: "int"}}, ep.Params)

	schema := result.Schemas[0]
	assert.Equal(t, "Item", schema.Name)
	assert.Equal(t, "class Item(BaseModel):\n    name: str\n    price: float", schema.RawDefinitionText)
	want := []types.Field{{Name: "name", Annotation: "str"}, {Name: "price", Annotation: "float"}}
	if diff := cmp.Diff(want, schema.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_SourceOrderAndCounts(t *testing.T) {
	result, err := analyzeFixture(t, "service.py")
	require.NoError(t, err)

	var routes []string
	for _, ep := range result.Endpoints {
		routes = append(routes, ep.Route())
	}
	assert.Equal(t, []string{
		"GET /",
		"GET /users",
		"POST /users",
		"DELETE /users/{user_id}",
		"PATCH ",
	}, routes)

	var names []string
	for _, s := range result.Schemas {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"User", "UserCreate", "Order"}, names)

	for i := 1; i < len(result.Endpoints); i++ {
		assert.Less(t, result.Endpoints[i-1].Line, result.Endpoints[i].Line)
	}
}

func TestAnalyze_EndpointDetails(t *testing.T) {
	result, err := analyzeFixture(t, "service.py")
	require.NoError(t, err)
	byHandler := make(map[string]types.EndpointDescriptor)
	for _, ep := range result.Endpoints {
		byHandler[ep.HandlerName] = ep
	}

	root := byHandler["root"]
	assert.Equal(t, "Root endpoint", root.Docstring)
	assert.Empty(t, root.Params)

	list := byHandler["list_users"]
	want := []types.Param{
		{Name: "limit", Annotation: "int", Default: "10"},
		{Name: "q", Annotation: "Optional[str]", Default: "None"},
	}
	if diff := cmp.Diff(want, list.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	create := byHandler["create_user"]
	assert.True(t, create.Async)
	assert.Equal(t, "User", create.ReturnAnnotation)
	assert.Equal(t, "Create a new user.", create.Docstring)
	assert.Equal(t, `@app.post("/users", response_model=User, status_code=201)`, create.RawDecoratorText)

	patch := byHandler["patch_user"]
	assert.Empty(t, patch.Path, "non-literal path is left empty")
	assert.Equal(t, types.MethodPatch, patch.Method)
}

func TestAnalyze_IgnoresNonRouteDecorators(t *testing.T) {
	result, err := analyzeFixture(t, "service.py")
	require.NoError(t, err)

	for _, ep := range result.Endpoints {
		assert.NotContains(t, []string{"add_header", "startup", "ws", "not_a_route"}, ep.HandlerName)
	}
}

func TestAnalyze_QualifiedSchemaBase(t *testing.T) {
	result, err := analyzeFixture(t, "service.py")
	require.NoError(t, err)

	var found bool
	for _, s := range result.Schemas {
		if s.Name == "UserCreate" {
			found = true
			assert.Equal(t, []string{"pydantic.BaseModel"}, s.Bases)
		}
	}
	assert.True(t, found)
}

func TestAnalyze_SyntaxError(t *testing.T) {
	_, err := analyzeFixture(t, "broken.py")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrParse))

	var perr *types.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Greater(t, perr.Line, 0)
	assert.Equal(t, types.KindParse, types.KindOf(err))
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, err := analyzeFixture(t, "does_not_exist.py")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrParse))
}

func TestAnalyze_EmptyIsReportedWithResult(t *testing.T) {
	result, err := analyzeFixture(t, "no_routes.py")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAnalysisEmpty))
	assert.True(t, result.IsEmpty())
	require.Len(t, result.Schemas, 1)
	assert.Equal(t, "Settings", result.Schemas[0].Name)
}

func TestAnalyze_CustomOptions(t *testing.T) {
	src := []byte(`
from fastapi import APIRouter
from models import Model

router = APIRouter()

class Thing(Model):
    x: int

@router.put("/things/{id}")
def put_thing(id: int):
    return {}

@app.get("/ignored")
def ignored():
    return {}
`)
	a := New(Options{AppIdentifiers: []string{"router"}, SchemaBase: "Model"})
	result, err := a.Analyze(context.Background(), "router.py", src)
	require.NoError(t, err)

	require.Len(t, result.Endpoints, 1)
	assert.Equal(t, types.MethodPut, result.Endpoints[0].Method)
	assert.Equal(t, "/things/{id}", result.Endpoints[0].Path)
	require.Len(t, result.Schemas, 1)
	assert.Equal(t, "Thing", result.Schemas[0].Name)
}

func TestAnalyze_FirstRouteDecoratorWins(t *testing.T) {
	src := []byte(`
@app.get("/a")
@app.head("/a")
def a():
    pass
`)
	result, err := New(DefaultOptions()).Analyze(context.Background(), "multi.py", src)
	require.NoError(t, err)
	require.Len(t, result.Endpoints, 1)
	assert.Equal(t, types.MethodGet, result.Endpoints[0].Method)
}

func TestStringLiteral(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{`"/items"`, "/items", true},
		{`'/items'`, "/items", true},
		{`r"/raw"`, "/raw", true},
		{`"""doc"""`, "doc", true},
		{`f"/items/{x}"`, "", false},
		{`b"/bytes"`, "", false},
		{`B'/bytes'`, "", false},
		{`rb"/raw-bytes"`, "", false},
		{`""`, "", true},
	}
	for _, tt := range tests {
		got, ok := stringLiteral(tt.text, "string")
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}

	_, ok := stringLiteral(`"/a" + "/b"`, "binary_operator")
	assert.False(t, ok)
}
