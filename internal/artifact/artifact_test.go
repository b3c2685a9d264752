package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscribe/internal/types"
)

const wellFormed = `Here you go:
### TEST_CODE_START ###

from fastapi.testclient import TestClient
from main import app

client = TestClient(app)

def test_read_item():
    assert client.get("/items/1").status_code == 200

### TEST_CODE_END ###
### DOCS_START ###
# API

## GET /items/{item_id}
### DOCS_END ###
Thanks!`

func splitter() *Splitter {
	return NewSplitter(types.DefaultDelimiters())
}

func TestSplit_WellFormed(t *testing.T) {
	got, err := splitter().Split(wellFormed)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.TestCode, "from fastapi.testclient import TestClient"))
	assert.True(t, strings.HasSuffix(got.TestCode, `status_code == 200`))
	assert.Equal(t, "# API\n\n## GET /items/{item_id}", got.DocumentationMarkdown)
}

func TestSplit_IgnoresTextOutsideBlocks(t *testing.T) {
	base, err := splitter().Split(wellFormed)
	require.NoError(t, err)

	noisy, err := splitter().Split("PREAMBLE ```\n" + wellFormed + "\n\ntrailing chatter ### not a token")
	require.NoError(t, err)
	assert.Equal(t, base, noisy)
}

func TestSplit_Idempotent(t *testing.T) {
	s := splitter()
	first, err := s.Split(wellFormed)
	require.NoError(t, err)
	second, err := s.Split(wellFormed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_MissingAnyTokenFails(t *testing.T) {
	for _, tok := range types.DefaultDelimiters().Tokens() {
		t.Run(tok, func(t *testing.T) {
			raw := strings.Replace(wellFormed, tok, "", 1)
			got, err := splitter().Split(raw)
			require.Error(t, err)
			assert.Equal(t, types.ParsedArtifacts{}, got)

			var ferr *types.FormatError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, raw, ferr.RawText)
			assert.True(t, errors.Is(err, types.ErrFormat))
		})
	}
}

func TestSplit_StartAfterEndFails(t *testing.T) {
	raw := "### TEST_CODE_END ###\ncode\n### TEST_CODE_START ###\n### DOCS_START ###\ndocs\n### DOCS_END ###"
	_, err := splitter().Split(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appears after")
}

func TestSplit_EmptySegmentFails(t *testing.T) {
	raw := "### TEST_CODE_START ###\n \n\t### TEST_CODE_END ###\n### DOCS_START ###\ndocs\n### DOCS_END ###"
	_, err := splitter().Split(raw)
	assert.True(t, errors.Is(err, types.ErrFormat))

	raw = "### TEST_CODE_START ###\ncode\n### TEST_CODE_END ###\n### DOCS_START ###\n\n### DOCS_END ###"
	_, err = splitter().Split(raw)
	assert.True(t, errors.Is(err, types.ErrFormat))
}

func TestSplit_CodeFences(t *testing.T) {
	raw := "### TEST_CODE_START ###\n```python\nimport pytest\n```\n### TEST_CODE_END ###\n### DOCS_START ###\n```md\n# Docs\n```\n### DOCS_END ###"

	plain, err := splitter().Split(raw)
	require.NoError(t, err)
	assert.Equal(t, "```python\nimport pytest\n```", plain.TestCode, "fences are kept by default")

	s := splitter()
	s.StripCodeFences = true
	stripped, err := s.Split(raw)
	require.NoError(t, err)
	assert.Equal(t, "import pytest", stripped.TestCode)
	assert.Equal(t, "```md\n# Docs\n```", stripped.DocumentationMarkdown, "docs are never unfenced")

	s.Delimiters = types.DefaultDelimiters()
	_, err = s.Split("### TEST_CODE_START ###\n```python\n```\n### TEST_CODE_END ###\n### DOCS_START ###\nx\n### DOCS_END ###")
	assert.Error(t, err, "a fence around nothing is empty")
}

func TestWrite_RoundTripAndMkdir(t *testing.T) {
	dir := t.TempDir()
	dest := Destinations{
		TestPath: filepath.Join(dir, "tests", "deep", "test_generated.py"),
		DocsPath: filepath.Join(dir, "docs", "api.md"),
	}
	a := types.ParsedArtifacts{
		TestCode:              "  import pytest\n\n\ndef test_x():\n    pass\n\n",
		DocumentationMarkdown: "\t# API  \r\n",
	}

	require.NoError(t, NewWriter().Write(a, dest))

	gotTest, err := os.ReadFile(dest.TestPath)
	require.NoError(t, err)
	gotDocs, err := os.ReadFile(dest.DocsPath)
	require.NoError(t, err)
	assert.Equal(t, a.TestCode, string(gotTest))
	assert.Equal(t, a.DocumentationMarkdown, string(gotDocs))
}

func TestWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	dest := Destinations{TestPath: filepath.Join(dir, "t.py"), DocsPath: filepath.Join(dir, "d.md")}
	require.NoError(t, os.WriteFile(dest.TestPath, []byte("old content that is longer"), 0644))

	require.NoError(t, (&Writer{}).Write(types.ParsedArtifacts{TestCode: "new", DocumentationMarkdown: "doc"}, dest))
	got, err := os.ReadFile(dest.TestPath)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestWrite_SecondFailureKeepsFirst(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a file standing in for a directory")
	}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "docs")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0644))

	dest := Destinations{
		TestPath: filepath.Join(dir, "tests", "test_generated.py"),
		DocsPath: filepath.Join(blocker, "api.md"),
	}
	err := NewWriter().Write(types.ParsedArtifacts{TestCode: "code", DocumentationMarkdown: "doc"}, dest)
	require.Error(t, err)

	var werr *types.WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, dest.DocsPath, werr.Path)
	assert.Equal(t, types.KindWrite, types.KindOf(err))

	_, statErr := os.Stat(dest.TestPath)
	assert.NoError(t, statErr, "first artifact is not rolled back")
}
