package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"spinwin/internal/config"
	"spinwin/internal/db"
	"spinwin/internal/logging"
	"spinwin/internal/store"
)

// play_pruner runs the play log retention loop on its own, for deployments
// that set PLAY_PRUNER_IN_SERVER=false.
func main() {
	cfg := config.Load()
	logger := logging.WithComponent(logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}), "pruner")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mysql, err := db.NewMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("mysql init error")
	}
	if mysql == nil {
		logger.Fatal().Msg("MYSQL_DSN is required")
	}
	defer mysql.Close()

	pruner := store.NewPruner(store.NewPlays(mysql), cfg.PlayRetention, cfg.PlayPruneInterval, logger)
	logger.Info().Dur("retention", cfg.PlayRetention).Msg("play pruner started")
	pruner.Run(ctx)
	logger.Info().Msg("play pruner stopped")
}
