package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/models"
)

// RunLogRepository appends to and aggregates over the run log. Rows are
// never updated or deleted.
type RunLogRepository struct {
	db      sqlx.ExtContext
	dialect database.Dialect
}

func NewRunLogRepository(db sqlx.ExtContext, dialect database.Dialect) *RunLogRepository {
	return &RunLogRepository{db: db, dialect: dialect}
}

const runLogColumns = `seq, user_id, stage_code, prompt_length, clear_time_ms, created_at`

// Append inserts one run and returns the stored row, created_at included.
func (r *RunLogRepository) Append(ctx context.Context, userID, stageCode string, promptLength int, clearTimeMs int64) (models.RunLog, error) {
	const insert = `INSERT INTO run_logs (user_id, stage_code, prompt_length, clear_time_ms) VALUES (?, ?, ?, ?)`

	var seq int64
	if r.dialect.Returning {
		row := r.db.QueryRowxContext(ctx, r.db.Rebind(insert+" RETURNING seq"), userID, stageCode, promptLength, clearTimeMs)
		if err := row.Scan(&seq); err != nil {
			return models.RunLog{}, fmt.Errorf("insert run log: %w", err)
		}
	} else {
		res, err := r.db.ExecContext(ctx, r.db.Rebind(insert), userID, stageCode, promptLength, clearTimeMs)
		if err != nil {
			return models.RunLog{}, fmt.Errorf("insert run log: %w", err)
		}
		if seq, err = res.LastInsertId(); err != nil {
			return models.RunLog{}, fmt.Errorf("last insert id: %w", err)
		}
	}

	var log models.RunLog
	query := `SELECT ` + runLogColumns + ` FROM run_logs WHERE seq = ?`
	if err := sqlx.GetContext(ctx, r.db, &log, r.db.Rebind(query), seq); err != nil {
		return models.RunLog{}, fmt.Errorf("read run log %d: %w", seq, err)
	}
	return log, nil
}

// Counts aggregates a stage relative to one submission: all rows, rows with
// a strictly lower clear time and rows with a strictly lower prompt length.
func (r *RunLogRepository) Counts(ctx context.Context, stageCode string, clearTimeMs int64, promptLength int) (models.RankCounts, error) {
	const query = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN clear_time_ms < ? THEN 1 ELSE 0 END), 0) AS faster,
       COALESCE(SUM(CASE WHEN prompt_length < ? THEN 1 ELSE 0 END), 0) AS shorter
FROM run_logs
WHERE stage_code = ?`
	var counts models.RankCounts
	if err := sqlx.GetContext(ctx, r.db, &counts, r.db.Rebind(query), clearTimeMs, promptLength, stageCode); err != nil {
		return models.RankCounts{}, fmt.Errorf("rank counts: %w", err)
	}
	return counts, nil
}

// Recent returns the newest runs across all stages in ascending seq order.
func (r *RunLogRepository) Recent(ctx context.Context, limit int) ([]models.RunLog, error) {
	query := `SELECT ` + runLogColumns + ` FROM run_logs ORDER BY seq DESC LIMIT ?`
	logs := []models.RunLog{}
	if err := sqlx.SelectContext(ctx, r.db, &logs, r.db.Rebind(query), limit); err != nil {
		return nil, fmt.Errorf("recent run logs: %w", err)
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// Leaderboard returns every run of a stage, fastest first.
func (r *RunLogRepository) Leaderboard(ctx context.Context, stageCode string) ([]models.RunLog, error) {
	query := `SELECT ` + runLogColumns + ` FROM run_logs WHERE stage_code = ? ORDER BY clear_time_ms, seq`
	logs := []models.RunLog{}
	if err := sqlx.SelectContext(ctx, r.db, &logs, r.db.Rebind(query), stageCode); err != nil {
		return nil, fmt.Errorf("stage leaderboard: %w", err)
	}
	return logs, nil
}

func (r *RunLogRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM run_logs WHERE user_id = ?`
	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(query), userID); err != nil {
		return 0, fmt.Errorf("count user run logs: %w", err)
	}
	return n, nil
}
