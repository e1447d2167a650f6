package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/excel"
	"github.com/digkill/StageRank/internal/repository"
)

var ErrArchiveDisabled = errors.New("archive storage not configured")

// ArchiveStorage persists a rendered archive and returns where it lives.
type ArchiveStorage interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// ArchiveService exports per-stage leaderboards as a workbook.
type ArchiveService struct {
	db      *database.DB
	log     *slog.Logger
	storage ArchiveStorage
}

// NewArchiveService accepts a nil storage; Upload then fails with
// ErrArchiveDisabled while Workbook keeps working.
func NewArchiveService(db *database.DB, log *slog.Logger, storage ArchiveStorage) *ArchiveService {
	return &ArchiveService{db: db, log: log, storage: storage}
}

// Workbook renders every catalog stage with all of its runs, fastest first.
func (s *ArchiveService) Workbook(ctx context.Context) ([]byte, error) {
	repos := repository.New(s.db, s.db.Dialect)

	stages, err := repos.Stages.List(ctx)
	if err != nil {
		return nil, err
	}

	boards := make([]excel.StageBoard, 0, len(stages))
	for _, stage := range stages {
		runs, err := repos.RunLogs.Leaderboard(ctx, stage.Code)
		if err != nil {
			return nil, err
		}
		boards = append(boards, excel.StageBoard{Code: stage.Code, Runs: runs})
	}
	return excel.WriteLeaderboards(boards)
}

// Upload renders the workbook and hands it to the archive storage.
func (s *ArchiveService) Upload(ctx context.Context) (string, error) {
	if s.storage == nil {
		return "", ErrArchiveDisabled
	}
	data, err := s.Workbook(ctx)
	if err != nil {
		return "", fmt.Errorf("render archive: %w", err)
	}
	url, err := s.storage.Upload(ctx, data, excel.ContentType)
	if err != nil {
		return "", err
	}
	s.log.Info("leaderboard archive uploaded", "url", url, "bytes", len(data))
	return url, nil
}
