// Package cli holds the stagerank command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/digkill/StageRank/internal/config"
	"github.com/digkill/StageRank/internal/database"
	"github.com/digkill/StageRank/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the root command for the stagerank binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "stagerank",
		Short:        "Stage completion ranking server",
		Long:         "Ingests stage completions from game clients over websocket, ranks them per stage and streams them to live charts.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile == "" {
				return nil
			}
			if _, err := os.Stat(opts.EnvFile); err != nil {
				return fmt.Errorf("env file: %w", err)
			}
			return os.Setenv("CONFIG_ENV_PATH", opts.EnvFile)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", "", "path to an env file (overrides CONFIG_ENV_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStagesCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))

	return cmd
}

// env is what every command needs before doing real work.
type env struct {
	cfg config.Config
	log *slog.Logger
	db  *database.DB
}

// open loads configuration, connects and brings the schema up to date. The
// caller closes env.db.
func open(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connect: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migrate: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}
