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

// CatalogEntry is one stage to load into the catalog.
type CatalogEntry struct {
	Code  string
	Title string
}

// ImportResult summarises a catalog load.
type ImportResult struct {
	Created int
	Skipped int
	Errors  []string
}

type StageService struct {
	db *database.DB
}

func NewStageService(db *database.DB) *StageService {
	return &StageService{db: db}
}

// EnsureDefaultCatalog adds every default stage code that is missing.
func (s *StageService) EnsureDefaultCatalog(ctx context.Context) (*ImportResult, error) {
	codes := DefaultCatalog()
	entries := make([]CatalogEntry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, CatalogEntry{Code: code, Title: "Stage " + code})
	}
	return s.Import(ctx, entries)
}

// Import loads entries in one transaction. Invalid codes are reported and
// skipped; codes already present keep their title.
func (s *StageService) Import(ctx context.Context, entries []CatalogEntry) (*ImportResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stages := repository.NewStageRepository(tx, s.db.Dialect)
	result := &ImportResult{}
	for i, entry := range entries {
		code := strings.ToUpper(strings.TrimSpace(entry.Code))
		if !event.ValidStageCode(code) {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: invalid stage code %q", i+1, entry.Code))
			continue
		}
		created, err := stages.Ensure(ctx, code, strings.TrimSpace(entry.Title))
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit catalog tx: %w", err)
	}
	return result, nil
}

func (s *StageService) List(ctx context.Context) ([]models.Stage, error) {
	return repository.NewStageRepository(s.db, s.db.Dialect).List(ctx)
}
