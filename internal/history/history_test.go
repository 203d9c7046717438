package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/legosorter/internal/stages"
	"github.com/danmuck/legosorter/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	testlog.Start(t)
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := store.Begin(ctx, "localhost:9876", started)
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, store.RecordStage(ctx, id, stages.StageResult{
		ID: "clear_scene", Status: stages.StatusSuccess, Attempts: 1, Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, store.RecordStage(ctx, id, stages.StageResult{
		ID: "create_sorting_bucket", Status: stages.StatusFailed, Attempts: 3, Error: "timeout",
	}))
	require.NoError(t, store.Finish(ctx, id, stages.RunFailed, started.Add(time.Minute)))

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, stages.RunFailed, run.Status)
	require.Equal(t, "localhost:9876", run.Host)
	require.NotNil(t, run.FinishedAt)
	require.Len(t, run.Stages, 2)
	require.Equal(t, "clear_scene", run.Stages[0].StageID)
	require.Equal(t, int64(1500), run.Stages[0].DurationMS)
	require.Equal(t, 3, run.Stages[1].Attempts)
	require.Equal(t, "timeout", run.Stages[1].Error)
}

func TestFinishUnknownRun(t *testing.T) {
	testlog.Start(t)
	store := setupTestStore(t)
	err := store.Finish(context.Background(), 404, stages.RunSuccess, time.Now())
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.Get(context.Background(), 404)
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestRecentNewestFirst(t *testing.T) {
	testlog.Start(t)
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		id, err := store.Begin(ctx, "localhost:9876", time.Now())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, ids[2], runs[0].ID)
	require.Equal(t, ids[1], runs[1].ID)
	require.Equal(t, "running", runs[0].Status)
}
