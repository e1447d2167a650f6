package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/event"
	"github.com/digkill/StageRank/internal/models"
	"github.com/digkill/StageRank/internal/service"
)

const (
	errValidationFailed = "validation_failed"
	errStageNotFound    = "stage_not_found"
	receivedOK          = "ok"
)

// ackResponse is sent for every accepted completion. used_id and user_id
// carry the same value; older game builds read the former.
type ackResponse struct {
	Ack                  bool    `json:"ack"`
	UsedID               string  `json:"used_id"`
	UserID               string  `json:"user_id"`
	Stage                string  `json:"stage"`
	RankClearTimePercent float64 `json:"rank_clear_time_percent"`
	RankTokensPercent    float64 `json:"rank_tokens_percent"`
	RankClearTime        int64   `json:"rank_clear_time"`
	RankTokens           int64   `json:"rank_tokens"`
	TotalRecords         int64   `json:"total_records"`
	ReceivedText         string  `json:"received_text"`
}

type nackResponse struct {
	Ack     bool               `json:"ack"`
	Error   string             `json:"error,omitempty"`
	Details []event.FieldError `json:"details,omitempty"`
	DBError string             `json:"db_error,omitempty"`
}

func newAck(result *models.RunResult) ackResponse {
	return ackResponse{
		Ack:                  true,
		UsedID:               result.Log.UserID,
		UserID:               result.Log.UserID,
		Stage:                result.Log.StageCode,
		RankClearTimePercent: result.Rank.TimePercentile,
		RankTokensPercent:    result.Rank.TokenPercentile,
		RankClearTime:        result.Rank.RankByTime,
		RankTokens:           result.Rank.RankByTokens,
		TotalRecords:         result.Rank.Total,
		ReceivedText:         receivedOK,
	}
}

type frame struct {
	typ  websocket.MessageType
	data []byte
}

// handleSession answers every inbound frame with exactly one response, in
// the order the frames arrived.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	log := s.log.With("session", uuid.NewString(), "remote", r.RemoteAddr)
	log.Info("session opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan frame)
	go readFrames(ctx, cancel, conn, frames, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("session closed")
			return
		case f := <-frames:
			resp := s.respond(ctx, f, log)
			if err := wsjson.Write(ctx, conn, resp); err != nil {
				log.Info("session write failed", "err", err)
				return
			}
		}
	}
}

// readFrames feeds frames to the session loop. A read error means the peer is
// gone, so it cancels the session and any submission still running.
func readFrames(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- frame, log *slog.Logger) {
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				log.Debug("peer closed session", "status", status)
			} else if ctx.Err() == nil {
				log.Info("session read failed", "err", err)
			}
			return
		}
		select {
		case out <- frame{typ: typ, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) respond(ctx context.Context, f frame, log *slog.Logger) any {
	if f.typ != websocket.MessageText {
		return nackResponse{
			Error:   errValidationFailed,
			Details: []event.FieldError{{Field: "_payload", Message: "expected a text frame"}},
		}
	}

	ev, err := event.Parse(f.data)
	if err != nil {
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			return nackResponse{Error: errValidationFailed, Details: verr.Fields}
		}
		return nackResponse{
			Error:   errValidationFailed,
			Details: []event.FieldError{{Field: "_payload", Message: err.Error()}},
		}
	}

	result, err := s.deps.Runs.Submit(ctx, ev)
	if err != nil {
		if errors.Is(err, service.ErrStageNotFound) {
			log.Info("completion for unknown stage", "stage", ev.StageCode, "user_id", ev.UserID)
			return nackResponse{Error: errStageNotFound}
		}
		class := database.ClassInternal
		var serr *service.StorageError
		if errors.As(err, &serr) {
			class = serr.Class
		}
		log.Error("submit completion", "stage", ev.StageCode, "user_id", ev.UserID, "class", class, "err", err)
		return nackResponse{DBError: class}
	}

	log.Debug("completion accepted", "seq", result.Log.Seq, "stage", result.Log.StageCode)
	return newAck(result)
}
