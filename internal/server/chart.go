package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/digkill/StageRank/internal/models"
)

type chartSnapshot struct {
	Type string          `json:"type"`
	Rows []models.RunLog `json:"rows"`
}

type chartRow struct {
	Type string `json:"type"`
	models.RunLog
}

// handleChart streams the recent run history followed by every new run.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	id := uuid.NewString()
	log := s.log.With("chart", id, "remote", r.RemoteAddr)
	ctx := conn.CloseRead(r.Context())

	// Subscribe before loading the snapshot; rows seen in both are skipped below.
	sub := s.deps.Broadcaster.Subscribe(id)
	defer sub.Close()

	rows, err := s.deps.Runs.Recent(ctx, s.snapshotSize)
	if err != nil {
		log.Error("chart snapshot", "err", err)
		conn.Close(websocket.StatusInternalError, "snapshot unavailable")
		return
	}
	if err := wsjson.Write(ctx, conn, chartSnapshot{Type: "snapshot", Rows: rows}); err != nil {
		log.Info("chart write failed", "err", err)
		return
	}

	seen := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		seen[row.Seq] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case row, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusTryAgainLater, "chart feed fell behind")
				return
			}
			if _, dup := seen[row.Seq]; dup {
				delete(seen, row.Seq)
				continue
			}
			if err := wsjson.Write(ctx, conn, chartRow{Type: "run", RunLog: row}); err != nil {
				log.Info("chart write failed", "err", err)
				return
			}
		}
	}
}
