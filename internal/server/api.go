package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/StageRank/internal/excel"
	"github.com/digkill/StageRank/internal/service"
)

type registerRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	created, err := s.deps.Users.Register(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUserID) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]any{"user_id": userID, "created": created})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.deps.Users.Progress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.deps.Stages.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stages)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.DB.PingContext(ctx); err != nil {
		s.log.Warn("health check failed", "err", err)
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeaderboardWorkbook(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Archive.Workbook(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", excel.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	url, err := s.deps.Archive.Upload(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
