package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/models"
)

var ErrProgressMissing = errors.New("progress row missing")

type ProgressRepository struct {
	db      sqlx.ExtContext
	dialect database.Dialect
}

func NewProgressRepository(db sqlx.ExtContext, dialect database.Dialect) *ProgressRepository {
	return &ProgressRepository{db: db, dialect: dialect}
}

// Ensure creates an unlocked progress row for the pair if none exists.
func (r *ProgressRepository) Ensure(ctx context.Context, userID string, stageID int64) error {
	query := r.db.Rebind(r.dialect.InsertIgnore(
		"user_stage_progress",
		[]string{"user_id", "stage_id", "unlocked"},
		[]string{"user_id", "stage_id"},
	))
	if _, err := r.db.ExecContext(ctx, query, userID, stageID, true); err != nil {
		return fmt.Errorf("ensure progress: %w", err)
	}
	return nil
}

// Unlock grants access to a stage without touching its cleared state.
func (r *ProgressRepository) Unlock(ctx context.Context, userID string, stageID int64) error {
	if err := r.Ensure(ctx, userID, stageID); err != nil {
		return err
	}
	const query = `UPDATE user_stage_progress SET unlocked = ? WHERE user_id = ? AND stage_id = ? AND unlocked = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, userID, stageID, false); err != nil {
		return fmt.Errorf("unlock progress: %w", err)
	}
	return nil
}

// RecordClear stores the latest attempt. Earlier values are overwritten even
// when they were better.
func (r *ProgressRepository) RecordClear(ctx context.Context, userID string, stageID int64, promptLength int, clearTimeMs int64, now time.Time) error {
	const query = `
UPDATE user_stage_progress
SET unlocked = ?, cleared = ?, prompt_length = ?, clear_time_ms = ?, cleared_at = ?
WHERE user_id = ? AND stage_id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, true, promptLength, clearTimeMs, now.UTC(), userID, stageID)
	if err != nil {
		return fmt.Errorf("record clear: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record clear %s/%d: %w", userID, stageID, ErrProgressMissing)
	}
	return nil
}

func (r *ProgressRepository) Get(ctx context.Context, userID string, stageID int64) (*models.Progress, error) {
	const query = `
SELECT user_id, stage_id, unlocked, cleared, prompt_length, clear_time_ms, cleared_at
FROM user_stage_progress WHERE user_id = ? AND stage_id = ?`
	var p models.Progress
	if err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(query), userID, stageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

// ListForUser returns every catalog stage with the user's state on it.
// Stages without a progress row come back locked.
func (r *ProgressRepository) ListForUser(ctx context.Context, userID string) ([]models.StageProgress, error) {
	const query = `
SELECT s.code,
       COALESCE(p.unlocked, FALSE),
       COALESCE(p.cleared, FALSE),
       COALESCE(p.prompt_length, 0),
       COALESCE(p.clear_time_ms, 0),
       p.cleared_at
FROM stages s
LEFT JOIN user_stage_progress p ON p.stage_id = s.stage_id AND p.user_id = ?
ORDER BY s.code`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	list := []models.StageProgress{}
	for rows.Next() {
		var sp models.StageProgress
		var clearedAt sql.NullTime
		if err := rows.Scan(&sp.Code, &sp.Unlocked, &sp.Cleared, &sp.PromptLength, &sp.ClearTimeMs, &clearedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if clearedAt.Valid {
			t := clearedAt.Time
			sp.ClearedAt = &t
		}
		list = append(list, sp)
	}
	return list, rows.Err()
}
