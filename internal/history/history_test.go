package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiscribe/internal/pipeline"
	"apiscribe/internal/types"
)

func openTestDB(t *testing.T) Repository {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewRepository(db)
}

func TestRecordAndGet(t *testing.T) {
	repo := openTestDB(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := Run{
		ID: "run-1", SourcePath: "main.py", TestPath: "tests/t.py", DocsPath: "docs/api.md",
		Provider: "openai", Model: "gpt-4o", State: "Done",
		Endpoints: 2, Verified: true, TestsPassed: true, Passed: 4, DurationMS: 1500,
		CreatedAt: start,
	}
	require.NoError(t, repo.Record(run))

	got, err := repo.Get("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	got.CreatedAt = got.CreatedAt.UTC()
	if diff := cmp.Diff(run, *got); diff != "" {
		t.Errorf("stored run mismatch (-want +got):\n%s", diff)
	}

	missing, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecord_Validation(t *testing.T) {
	repo := openTestDB(t)
	assert.Error(t, repo.Record(Run{SourcePath: "main.py"}))
	assert.Error(t, repo.Record(Run{ID: "x"}))

	require.NoError(t, repo.Record(Run{ID: "dup", SourcePath: "a.py", State: "Done"}))
	assert.Error(t, repo.Record(Run{ID: "dup", SourcePath: "a.py", State: "Done"}), "ids are unique")
}

func TestList_NewestFirst(t *testing.T) {
	repo := openTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Record(Run{ID: id, SourcePath: id + ".py", State: "Done", CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := repo.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNewRun(t *testing.T) {
	start := time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC)
	failed := &pipeline.Outcome{
		RunID:       "id-1",
		Request:     pipeline.Request{SourcePath: "svc.py", TestPath: "t.py", DocsPath: "d.md"},
		State:       pipeline.StateFailed,
		FailedStage: pipeline.StateParsing,
		Kind:        types.KindFormat,
		Err:         &types.FormatError{Reason: "missing token"},
		Analysis:    &types.AnalysisResult{Endpoints: make([]types.EndpointDescriptor, 3)},
		StartedAt:   start,
		FinishedAt:  start.Add(2 * time.Second),
	}
	r := NewRun(failed, "anthropic", "claude")
	assert.Equal(t, "Failed", r.State)
	assert.Equal(t, "Parsing", r.FailedStage)
	assert.Equal(t, "format", r.ErrorKind)
	assert.Contains(t, r.Error, "missing token")
	assert.Equal(t, 3, r.Endpoints)
	assert.Equal(t, int64(2000), r.DurationMS)
	assert.False(t, r.Verified)

	done := &pipeline.Outcome{
		RunID:   "id-2",
		Request: pipeline.Request{SourcePath: "svc.py"},
		State:   pipeline.StateDone,
		Report: &types.VerificationReport{
			Succeeded: false, ExitCode: 1,
			Summary: &types.TestSummary{Passed: 2, Failed: 1, Errors: 1},
		},
		Err: errors.New("ignored when done"),
	}
	r = NewRun(done, "openai", "gpt-4o")
	assert.Equal(t, "Done", r.State)
	assert.Empty(t, r.Error)
	assert.True(t, r.Verified)
	assert.False(t, r.TestsPassed)
	assert.Equal(t, 1, r.ExitCode)
	assert.Equal(t, 2, r.Passed)
	assert.Equal(t, 2, r.Failed)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
