package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/digkill/StageRank/internal/broadcast"
	"github.com/digkill/StageRank/internal/config"
	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/service"
	"github.com/digkill/StageRank/pkg/logger"
)

type testEnv struct {
	srv *httptest.Server
	db  *database.DB
}

// newTestEnv serves the full router over a fresh SQLite database. With no
// codes the default A1..E5 catalog is loaded.
func newTestEnv(t *testing.T, codes ...string) *testEnv {
	t.Helper()
	log := logger.Discard()

	db, err := database.Connect(config.Config{
		DBDriver:    config.DriverSQLite,
		DatabaseDSN: "file:" + filepath.Join(t.TempDir(), "stagerank.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))

	stages := service.NewStageService(db)
	if len(codes) == 0 {
		_, err = stages.EnsureDefaultCatalog(ctx)
	} else {
		entries := make([]service.CatalogEntry, 0, len(codes))
		for _, code := range codes {
			entries = append(entries, service.CatalogEntry{Code: code})
		}
		_, err = stages.Import(ctx, entries)
	}
	require.NoError(t, err)

	bc := broadcast.New(log, 64)
	bcCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = bc.Run(bcCtx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	cfg := config.Config{
		AdminUsername:     "admin",
		AdminPassword:     "secret",
		ChartSnapshotSize: 500,
	}
	s := NewServer(cfg, log, Deps{
		DB:          db,
		Runs:        service.NewRunService(db, log, bc, 5*time.Second),
		Users:       service.NewUserService(db),
		Stages:      stages,
		Archive:     service.NewArchiveService(db, log, nil),
		Broadcaster: bc,
	})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, db: db}
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func sendText(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(payload)))
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Read(ctx, conn, v))
}

func (e *testEnv) request(t *testing.T, method, path, body string, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
