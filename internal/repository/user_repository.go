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

type UserRepository struct {
	db      sqlx.ExtContext
	dialect database.Dialect
}

func NewUserRepository(db sqlx.ExtContext, dialect database.Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: dialect}
}

// Ensure inserts the user if absent and reports whether a row was created.
// Concurrent callers never see a duplicate-key error.
func (r *UserRepository) Ensure(ctx context.Context, userID string) (bool, error) {
	query := r.db.Rebind(r.dialect.InsertIgnore("users", []string{"user_id"}, []string{"user_id"}))
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("user rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	const query = `SELECT user_id, created_at FROM users WHERE user_id = ?`
	var u models.User
	if err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(query), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
