package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/models"
)

type StageRepository struct {
	db      sqlx.ExtContext
	dialect database.Dialect
}

func NewStageRepository(db sqlx.ExtContext, dialect database.Dialect) *StageRepository {
	return &StageRepository{db: db, dialect: dialect}
}

// LookupByCode returns nil when the catalog has no such stage.
func (r *StageRepository) LookupByCode(ctx context.Context, code string) (*models.Stage, error) {
	const query = `SELECT stage_id, code, title FROM stages WHERE code = ?`
	var s models.Stage
	if err := sqlx.GetContext(ctx, r.db, &s, r.db.Rebind(query), code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup stage: %w", err)
	}
	return &s, nil
}

// First returns the lowest catalog stage, which new users start on.
func (r *StageRepository) First(ctx context.Context) (*models.Stage, error) {
	const query = `SELECT stage_id, code, title FROM stages ORDER BY code LIMIT 1`
	var s models.Stage
	if err := sqlx.GetContext(ctx, r.db, &s, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first stage: %w", err)
	}
	return &s, nil
}

func (r *StageRepository) List(ctx context.Context) ([]models.Stage, error) {
	const query = `SELECT stage_id, code, title FROM stages ORDER BY code`
	stages := []models.Stage{}
	if err := sqlx.SelectContext(ctx, r.db, &stages, query); err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return stages, nil
}

// Ensure adds a catalog entry if the code is new. Existing titles are kept.
func (r *StageRepository) Ensure(ctx context.Context, code, title string) (bool, error) {
	query := r.db.Rebind(r.dialect.InsertIgnore("stages", []string{"code", "title"}, []string{"code"}))
	res, err := r.db.ExecContext(ctx, query, code, title)
	if err != nil {
		return false, fmt.Errorf("ensure stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("stage rows affected: %w", err)
	}
	return affected == 1, nil
}
