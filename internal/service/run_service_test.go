package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/models"
	"github.com/digkill/StageRank/internal/repository"
	"github.com/digkill/StageRank/pkg/logger"
)

func newRunService(db *database.DB, pub Publisher) *RunService {
	return NewRunService(db, logger.Discard(), pub, 5*time.Second)
}

func completion(user, stage string, promptLength int, clearTimeMs int64) models.CompletionEvent {
	return models.CompletionEvent{UserID: user, StageCode: stage, PromptLength: promptLength, ClearTimeMs: clearTimeMs}
}

func TestSubmitRanksWithinStage(t *testing.T) {
	db := newTestDB(t)
	pub := &recordingPublisher{}
	svc := newRunService(db, pub)
	ctx := context.Background()

	first, err := svc.Submit(ctx, completion("u1", "B3", 10, 5000))
	require.NoError(t, err)
	assert.Equal(t, models.Rank{RankByTime: 1, TimePercentile: 0, RankByTokens: 1, TokenPercentile: 0, Total: 1}, first.Rank)
	assert.Equal(t, "u1", first.Log.UserID)
	assert.Equal(t, "B3", first.Log.StageCode)
	assert.NotZero(t, first.Log.Seq)

	second, err := svc.Submit(ctx, completion("u2", "B3", 8, 7000))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Rank.RankByTime)
	assert.Equal(t, 50.0, second.Rank.TimePercentile)
	assert.Equal(t, int64(1), second.Rank.RankByTokens)
	assert.Equal(t, 0.0, second.Rank.TokenPercentile)
	assert.Equal(t, int64(2), second.Rank.Total)
	assert.Greater(t, second.Log.Seq, first.Log.Seq)

	other, err := svc.Submit(ctx, completion("u3", "C1", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Rank.Total, "stages rank independently")

	assert.Equal(t, 3, pub.count())
}

func TestSubmitTiesShareRank(t *testing.T) {
	db := newTestDB(t)
	svc := newRunService(db, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, completion("u1", "A1", 10, 5000))
	require.NoError(t, err)
	tied, err := svc.Submit(ctx, completion("u2", "A1", 10, 5000))
	require.NoError(t, err)

	assert.Equal(t, int64(1), tied.Rank.RankByTime)
	assert.Equal(t, int64(1), tied.Rank.RankByTokens)
	assert.Equal(t, 0.0, tied.Rank.TimePercentile)
	assert.Equal(t, int64(2), tied.Rank.Total)
}

func TestSubmitUnknownStageWritesNothing(t *testing.T) {
	db := newTestDB(t, "A1", "A2")
	pub := &recordingPublisher{}
	svc := newRunService(db, pub)

	_, err := svc.Submit(context.Background(), completion("u1", "C3", 10, 5000))
	require.ErrorIs(t, err, ErrStageNotFound)

	assert.Zero(t, countRows(t, db, "users"))
	assert.Zero(t, countRows(t, db, "user_stage_progress"))
	assert.Zero(t, countRows(t, db, "run_logs"))
	assert.Zero(t, pub.count())
}

func TestSubmitLatestAttemptWins(t *testing.T) {
	db := newTestDB(t)
	svc := newRunService(db, nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err := svc.Submit(ctx, completion("u1", "A1", 10, 5000))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, completion("u1", "A1", 30, 9000))
	require.NoError(t, err)

	repos := repository.New(db, db.Dialect)
	stage, err := repos.Stages.LookupByCode(ctx, "A1")
	require.NoError(t, err)
	progress, err := repos.Progress.Get(ctx, "u1", stage.ID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.True(t, progress.Unlocked)
	assert.True(t, progress.Cleared)
	assert.Equal(t, 30, progress.PromptLength)
	assert.Equal(t, int64(9000), progress.ClearTimeMs)
	require.True(t, progress.ClearedAt.Valid)
	assert.True(t, fixed.Equal(progress.ClearedAt.Time))

	assert.Equal(t, 1, countRows(t, db, "users"))
	assert.Equal(t, 2, countRows(t, db, "run_logs"))
}

func TestSubmitUnlocksSuccessors(t *testing.T) {
	db := newTestDB(t)
	svc := newRunService(db, nil)
	ctx := context.Background()
	repos := repository.New(db, db.Dialect)

	unlocked := func(code string) bool {
		stage, err := repos.Stages.LookupByCode(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, stage)
		p, err := repos.Progress.Get(ctx, "u1", stage.ID)
		require.NoError(t, err)
		return p != nil && p.Unlocked
	}

	_, err := svc.Submit(ctx, completion("u1", "A2", 10, 5000))
	require.NoError(t, err)
	assert.True(t, unlocked("A3"))

	_, err = svc.Submit(ctx, completion("u1", "A5", 10, 5000))
	require.NoError(t, err)
	assert.True(t, unlocked("B1"))

	before := countRows(t, db, "user_stage_progress")
	_, err = svc.Submit(ctx, completion("u1", "E5", 10, 5000))
	require.NoError(t, err)
	assert.Equal(t, before+1, countRows(t, db, "user_stage_progress"), "E5 adds only its own row")
}

func TestSubmitUnlockDoesNotResetClear(t *testing.T) {
	db := newTestDB(t)
	svc := newRunService(db, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, completion("u1", "A2", 7, 700))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, completion("u1", "A1", 10, 5000))
	require.NoError(t, err)

	repos := repository.New(db, db.Dialect)
	stage, err := repos.Stages.LookupByCode(ctx, "A2")
	require.NoError(t, err)
	p, err := repos.Progress.Get(ctx, "u1", stage.ID)
	require.NoError(t, err)
	assert.True(t, p.Cleared)
	assert.Equal(t, int64(700), p.ClearTimeMs)
}

func TestSubmitSkipsSuccessorMissingFromCatalog(t *testing.T) {
	db := newTestDB(t, "A1", "A2", "A3")
	svc := newRunService(db, nil)

	_, err := svc.Submit(context.Background(), completion("u1", "A3", 10, 5000))
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, "user_stage_progress"))
}

func TestSubmitStorageFailures(t *testing.T) {
	db := newTestDB(t)
	pub := &recordingPublisher{}

	t.Run("timeout", func(t *testing.T) {
		svc := NewRunService(db, logger.Discard(), pub, time.Nanosecond)
		time.Sleep(time.Millisecond)
		_, err := svc.Submit(context.Background(), completion("u1", "A1", 10, 5000))
		var serr *StorageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, database.ClassTimeout, serr.Class)
	})

	t.Run("canceled", func(t *testing.T) {
		svc := newRunService(db, pub)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Submit(ctx, completion("u1", "A1", 10, 5000))
		var serr *StorageError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, database.ClassCanceled, serr.Class)
	})

	t.Run("closed pool", func(t *testing.T) {
		closed := newTestDB(t)
		require.NoError(t, closed.Close())
		svc := newRunService(closed, pub)
		_, err := svc.Submit(context.Background(), completion("u1", "A1", 10, 5000))
		var serr *StorageError
		require.ErrorAs(t, err, &serr)
		assert.NotEmpty(t, serr.Class)
	})

	assert.Zero(t, countRows(t, db, "run_logs"))
	assert.Zero(t, pub.count())
}

func TestSubmitRollsBackPartialWrites(t *testing.T) {
	db := newTestDB(t)
	pub := &recordingPublisher{}
	svc := newRunService(db, pub)

	// The user and progress rows are written before the log append fails.
	_, err := db.Exec(`ALTER TABLE run_logs RENAME TO run_logs_gone`)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), completion("u1", "A1", 10, 5000))
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, database.ClassInternal, serr.Class)

	assert.Zero(t, countRows(t, db, "users"))
	assert.Zero(t, countRows(t, db, "user_stage_progress"))
	assert.Zero(t, countRows(t, db, "run_logs_gone"))
	assert.Zero(t, pub.count())
}

func TestSubmitConcurrentWritersRankConsistently(t *testing.T) {
	const writers = 8
	db := newTestDB(t)
	pub := &recordingPublisher{}
	svc := newRunService(db, pub)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*models.RunResult
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Submit(context.Background(), completion(fmt.Sprintf("u%d", i), "C2", 10+i, int64(1000*(writers-i))))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	require.Len(t, results, writers)
	assert.Equal(t, writers, countRows(t, db, "run_logs"))
	assert.Equal(t, writers, pub.count())

	sort.Slice(results, func(i, j int) bool { return results[i].Rank.Total < results[j].Rank.Total })
	for i, r := range results {
		require.Equal(t, int64(i+1), r.Rank.Total, "each commit sees every earlier one")

		// Faster runs are the ones committed before this one with a lower time.
		var faster int64
		for _, earlier := range results[:i] {
			if earlier.Log.ClearTimeMs < r.Log.ClearTimeMs {
				faster++
			}
		}
		assert.Equal(t, faster+1, r.Rank.RankByTime)
		assert.Equal(t, round2(float64(faster)/float64(r.Rank.Total)*100), r.Rank.TimePercentile)
	}
}

func TestRecentReturnsAscendingTail(t *testing.T) {
	db := newTestDB(t)
	svc := newRunService(db, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Submit(ctx, completion("u1", "A1", i, int64(1000+i)))
		require.NoError(t, err)
	}

	runs, err := svc.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 2, runs[0].PromptLength)
	assert.Equal(t, 4, runs[2].PromptLength)
	assert.Less(t, runs[0].Seq, runs[1].Seq)
}
