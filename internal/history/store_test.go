package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-ci/stagehand/internal/report"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(pipeline string, build int, status report.Status) *report.RunRecord {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &report.RunRecord{
		Pipeline:    pipeline,
		RunID:       fmt.Sprintf("%s-%d", pipeline, build),
		BuildNumber: build,
		Branch:      "main",
		Status:      status,
		StartedAt:   started,
		FinishedAt:  started.Add(3 * time.Second),
		DurationMS:  3000,
		Stages: []report.StageResult{
			{Name: "Build", Status: status},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	rec := sampleRecord("web", 1, report.StatusSucceeded)
	require.NoError(t, store.Save(rec, 0))

	got, err := store.Get("web-1")
	require.NoError(t, err)
	assert.Equal(t, "web", got.Pipeline)
	assert.Equal(t, 1, got.BuildNumber)
	assert.Equal(t, report.StatusSucceeded, got.Status)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, "Build", got.Stages[0].Name)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsDuplicateRunID(t *testing.T) {
	store := newTestStore(t)

	rec := sampleRecord("web", 1, report.StatusSucceeded)
	require.NoError(t, store.Save(rec, 0))
	assert.Error(t, store.Save(rec, 0))
}

func TestNextBuildNumber(t *testing.T) {
	store := newTestStore(t)

	n, err := store.NextBuildNumber("web")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "empty history starts at 1")

	require.NoError(t, store.Save(sampleRecord("web", 1, report.StatusSucceeded), 0))
	require.NoError(t, store.Save(sampleRecord("web", 2, report.StatusFailed), 0))
	require.NoError(t, store.Save(sampleRecord("api", 9, report.StatusSucceeded), 0))

	n, err = store.NextBuildNumber("web")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.NextBuildNumber("api")
	require.NoError(t, err)
	assert.Equal(t, 10, n, "numbering is per pipeline")
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Save(sampleRecord("web", i, report.StatusSucceeded), 0))
	}
	require.NoError(t, store.Save(sampleRecord("api", 1, report.StatusFailed), 0))

	recs, err := store.List("", 0)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "api-1", recs[0].RunID)
	assert.Equal(t, "web-3", recs[1].RunID)

	recs, err = store.List("web", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].BuildNumber)
	assert.Equal(t, 2, recs[1].BuildNumber)
}

func TestSavePrunesBeyondRetention(t *testing.T) {
	store := newTestStore(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Save(sampleRecord("web", i, report.StatusSucceeded), 3))
	}
	// Retention only applies to the pipeline being saved.
	require.NoError(t, store.Save(sampleRecord("api", 1, report.StatusSucceeded), 3))

	recs, err := store.List("web", 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 5, recs[0].BuildNumber)
	assert.Equal(t, 3, recs[2].BuildNumber)

	recs, err = store.List("api", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
