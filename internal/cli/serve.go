package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/digkill/StageRank/internal/broadcast"
	"github.com/digkill/StageRank/internal/config"
	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/internal/notify"
	"github.com/digkill/StageRank/internal/scheduler"
	"github.com/digkill/StageRank/internal/server"
	"github.com/digkill/StageRank/internal/service"
	"github.com/digkill/StageRank/internal/storage"
	"github.com/digkill/StageRank/internal/telemetry"
)

const serviceName = "stagerank"

func NewServeCommand(_ *RootOptions) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket ingest server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), seed)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed-catalog", false, "add the default A1..E5 catalog before serving")
	return cmd
}

func runServe(ctx context.Context, seed bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := open(ctx)
	if err != nil {
		return err
	}
	defer e.db.Close()
	cfg, log := e.cfg, e.log

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("telemetry shutdown", "err", err)
		}
	}()

	stages := service.NewStageService(e.db)
	if seed {
		result, err := stages.EnsureDefaultCatalog(ctx)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("catalog seeded", "created", result.Created)
	}

	sinks, err := buildSinks(cfg, log)
	if err != nil {
		return err
	}
	bc := broadcast.New(log, cfg.BroadcastBuffer, sinks...)

	archive, err := newArchiveService(cfg, e.db, log)
	if err != nil {
		return err
	}
	if cfg.S3Enabled() {
		sched := scheduler.New(archive, cfg.ArchiveInterval, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := server.NewServer(cfg, log, server.Deps{
		DB:          e.db,
		Runs:        service.NewRunService(e.db, log, bc, cfg.EventTimeout),
		Users:       service.NewUserService(e.db),
		Stages:      stages,
		Archive:     archive,
		Broadcaster: bc,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("broadcaster stopped", "err", err)
		}
	}()

	err = srv.Run(ctx)
	stop()
	wg.Wait()
	log.Info("server stopped")
	return err
}

const telegramHTTPTimeout = 10 * time.Second

func buildSinks(cfg config.Config, log *slog.Logger) ([]broadcast.Sink, error) {
	if !cfg.TelegramEnabled() {
		return nil, nil
	}
	client := &http.Client{Timeout: telegramHTTPTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return []broadcast.Sink{notify.NewTelegramNotifier(api, cfg.TelegramChatID, log)}, nil
}

func newArchiveService(cfg config.Config, db *database.DB, log *slog.Logger) (*service.ArchiveService, error) {
	if !cfg.S3Enabled() {
		return service.NewArchiveService(db, log, nil), nil
	}
	uploader, err := storage.NewUploader(storage.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("storage uploader: %w", err)
	}
	return service.NewArchiveService(db, log, uploader), nil
}
