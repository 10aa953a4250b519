package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "git.home.luguber.info/inful/docpages/internal/errors"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
	"git.home.luguber.info/inful/docpages/internal/publish"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func successResult(id string, startedAt time.Time) *pipeline.Result {
	return &pipeline.Result{
		RunID:     id,
		Repo:      "pool",
		Commit:    "6dcb09b5b57875f334f61aebed695e2e4193db5e",
		Outcome:   pipeline.OutcomeSuccess,
		StartedAt: startedAt,
		Duration:  42 * time.Second,
		Publish:   &publish.Result{Commit: "deadbeef", Files: 12, Deleted: 1},
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, successResult("run-1", time.Now())))

	rec, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "pool", rec.Repo)
	assert.Equal(t, "6dcb09b5b57875f334f61aebed695e2e4193db5e", rec.SourceCommit)
	assert.Equal(t, string(pipeline.OutcomeSuccess), rec.Outcome)
	assert.Equal(t, "deadbeef", rec.PublishCommit)
	assert.Equal(t, 12, rec.Files)
	assert.Equal(t, 1, rec.Deleted)
	assert.Equal(t, 42*time.Second, rec.Duration)
	assert.Empty(t, rec.FailedStage)
}

func TestRecordFailedRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	res := &pipeline.Result{
		RunID:     "run-2",
		Repo:      "pool",
		Outcome:   pipeline.OutcomeFailed,
		StartedAt: time.Now(),
		Stages: []pipeline.StageExecution{
			{Name: pipeline.StageFetch},
			{Name: pipeline.StageToolchain, Err: apperrors.New(apperrors.CategoryToolchain, apperrors.SeverityFatal, "toolchain install failed")},
		},
	}
	require.NoError(t, s.Record(ctx, res))

	rec, err := s.Get(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, string(pipeline.StageToolchain), rec.FailedStage)
	assert.Contains(t, rec.Error, "toolchain install failed")
	assert.Empty(t, rec.PublishCommit)
}

func TestGetMissingRun(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentOrderingAndLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		res := successResult(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Record(ctx, res))
	}

	records, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "run-4", records[0].RunID)
	assert.Equal(t, "run-3", records[1].RunID)
	assert.Equal(t, "run-2", records[2].RunID)
}

func TestRecentDefaultLimit(t *testing.T) {
	s := openStore(t)
	records, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), successResult("run-1", time.Now())))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	rec, err := s2.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.RunID)
}
