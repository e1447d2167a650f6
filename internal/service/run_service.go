package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/models"
	"github.com/digkill/StageRank/internal/repository"
)

const tracerName = "github.com/digkill/StageRank/internal/service"

// Publisher receives accepted runs after their transaction committed.
// Implementations must not block.
type Publisher interface {
	Publish(result models.RunResult)
}

// RunService records stage completions and ranks them, one transaction per
// submission.
type RunService struct {
	db        *database.DB
	log       *slog.Logger
	publisher Publisher
	timeout   time.Duration
	tracer    trace.Tracer
	now       func() time.Time
}

func NewRunService(db *database.DB, log *slog.Logger, publisher Publisher, timeout time.Duration) *RunService {
	return &RunService{
		db:        db,
		log:       log,
		publisher: publisher,
		timeout:   timeout,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// Submit persists a validated completion and returns its rank within the
// stage. It fails with ErrStageNotFound for codes missing from the catalog
// and with *StorageError for anything the store rejects; in both cases
// nothing is written. The publisher is notified only after commit.
func (s *RunService) Submit(ctx context.Context, ev models.CompletionEvent) (*models.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "run.submit", trace.WithAttributes(
		attribute.String("stage.code", ev.StageCode),
		attribute.String("user.id", ev.UserID),
	))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.submit(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("run.seq", result.Log.Seq),
		attribute.Int64("rank.time", result.Rank.RankByTime),
		attribute.Int64("rank.total", result.Rank.Total),
	)

	if s.publisher != nil {
		s.publisher.Publish(*result)
	}
	return result, nil
}

func (s *RunService) submit(ctx context.Context, ev models.CompletionEvent) (*models.RunResult, error) {
	tx, err := s.db.BeginTxx(ctx, s.db.Dialect.TxOptions())
	if err != nil {
		return nil, storageError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	repos := repository.New(tx, s.db.Dialect)

	stage, err := repos.Stages.LookupByCode(ctx, ev.StageCode)
	if err != nil {
		return nil, storageError(err)
	}
	if stage == nil {
		return nil, fmt.Errorf("stage %q: %w", ev.StageCode, ErrStageNotFound)
	}

	if _, err := repos.Users.Ensure(ctx, ev.UserID); err != nil {
		return nil, storageError(err)
	}
	if err := repos.Progress.Ensure(ctx, ev.UserID, stage.ID); err != nil {
		return nil, storageError(err)
	}
	if err := repos.Progress.RecordClear(ctx, ev.UserID, stage.ID, ev.PromptLength, ev.ClearTimeMs, s.now()); err != nil {
		return nil, storageError(err)
	}
	if err := s.unlockSuccessors(ctx, repos, ev.UserID, stage.Code); err != nil {
		return nil, storageError(err)
	}

	runLog, err := repos.RunLogs.Append(ctx, ev.UserID, stage.Code, ev.PromptLength, ev.ClearTimeMs)
	if err != nil {
		return nil, storageError(err)
	}
	counts, err := repos.RunLogs.Counts(ctx, runLog.StageCode, runLog.ClearTimeMs, runLog.PromptLength)
	if err != nil {
		return nil, storageError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError(fmt.Errorf("commit run tx: %w", err))
	}

	return &models.RunResult{Log: runLog, Rank: ComputeRank(counts)}, nil
}

func (s *RunService) unlockSuccessors(ctx context.Context, repos *repository.Repositories, userID, code string) error {
	for _, next := range SuccessorCodes(code) {
		stage, err := repos.Stages.LookupByCode(ctx, next)
		if err != nil {
			return err
		}
		if stage == nil {
			s.log.Debug("successor stage not in catalog", "stage", code, "successor", next)
			continue
		}
		if err := repos.Progress.Unlock(ctx, userID, stage.ID); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns the latest runs across all stages in ascending seq order.
func (s *RunService) Recent(ctx context.Context, limit int) ([]models.RunLog, error) {
	runs, err := repository.NewRunLogRepository(s.db, s.db.Dialect).Recent(ctx, limit)
	if err != nil {
		return nil, storageError(err)
	}
	return runs, nil
}
