// Package server exposes the websocket ingest endpoint, the live chart feed
// and a small REST surface over one chi router.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/StageRank/internal/broadcast"
	"github.com/digkill/StageRank/internal/config"
	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/service"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	DB          *database.DB
	Runs        *service.RunService
	Users       *service.UserService
	Stages      *service.StageService
	Archive     *service.ArchiveService
	Broadcaster *broadcast.Broadcaster
}

type Server struct {
	addr           string
	username       string
	password       string
	snapshotSize   int
	originPatterns []string
	log            *slog.Logger
	deps           Deps
	router         *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:           cfg.ListenAddr,
		username:       cfg.AdminUsername,
		password:       cfg.AdminPassword,
		snapshotSize:   cfg.ChartSnapshotSize,
		originPatterns: cfg.WSOriginPatterns,
		log:            log,
		deps:           deps,
		router:         r,
	}

	r.Get("/ws", s.handleSession)
	r.Get("/chart", s.handleChart)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stages", s.handleListStages)
	r.Post("/users", s.handleRegisterUser)
	r.Get("/progress/{userID}", s.handleProgress)
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Get("/leaderboard.xlsx", s.handleLeaderboardWorkbook)
		admin.Post("/archive", s.handleArchive)
	})
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done. Open websocket sessions inherit ctx and are
// torn down with it.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || s.username == "" || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="stagerank"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("http handler error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
