package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/event"
	"github.com/digkill/StageRank/internal/models"
	"github.com/digkill/StageRank/internal/repository"
)

type UserService struct {
	db *database.DB
}

// UserProgress is a user's view of the whole catalog.
type UserProgress struct {
	UserID    string                 `json:"user_id"`
	TotalRuns int64                  `json:"total_runs"`
	Stages    []models.StageProgress `json:"stages"`
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

// Register creates the user if needed and grants the first catalog stage.
func (s *UserService) Register(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if !event.ValidUserID(userID) {
		return false, ErrInvalidUserID
	}

	tx, err := s.db.BeginTxx(ctx, s.db.Dialect.TxOptions())
	if err != nil {
		return false, storageError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	repos := repository.New(tx, s.db.Dialect)
	created, err := repos.Users.Ensure(ctx, userID)
	if err != nil {
		return false, storageError(err)
	}
	first, err := repos.Stages.First(ctx)
	if err != nil {
		return false, storageError(err)
	}
	if first != nil {
		if err := repos.Progress.Unlock(ctx, userID, first.ID); err != nil {
			return false, storageError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storageError(fmt.Errorf("commit register tx: %w", err))
	}
	return created, nil
}

func (s *UserService) Progress(ctx context.Context, userID string) (*UserProgress, error) {
	repos := repository.New(s.db, s.db.Dialect)

	user, err := repos.Users.Get(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	stages, err := repos.Progress.ListForUser(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	runs, err := repos.RunLogs.CountForUser(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	return &UserProgress{UserID: user.UserID, TotalRuns: runs, Stages: stages}, nil
}
