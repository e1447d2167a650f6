package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digkill/StageRank/internal/config"
	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/models"
)

// newTestDB returns a migrated SQLite database holding the given catalog, or
// the default A1..E5 catalog when codes is empty.
func newTestDB(t *testing.T, codes ...string) *database.DB {
	t.Helper()
	db, err := database.Connect(config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseDSN: "file:" + filepath.Join(t.TempDir(), "stagerank.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))

	stages := NewStageService(db)
	if len(codes) == 0 {
		_, err = stages.EnsureDefaultCatalog(ctx)
	} else {
		entries := make([]CatalogEntry, 0, len(codes))
		for _, code := range codes {
			entries = append(entries, CatalogEntry{Code: code, Title: code})
		}
		_, err = stages.Import(ctx, entries)
	}
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []models.RunResult
}

func (p *recordingPublisher) Publish(r models.RunResult) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}
