package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/digkill/StageRank/internal/database"
)

// Repositories bundles every repository bound to the same executor, which is
// either the pool or a single transaction.
type Repositories struct {
	Users    *UserRepository
	Stages   *StageRepository
	Progress *ProgressRepository
	RunLogs  *RunLogRepository
}

func New(q sqlx.ExtContext, dialect database.Dialect) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(q, dialect),
		Stages:   NewStageRepository(q, dialect),
		Progress: NewProgressRepository(q, dialect),
		RunLogs:  NewRunLogRepository(q, dialect),
	}
}
