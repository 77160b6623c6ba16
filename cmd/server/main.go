package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webassets "spinwin"
	"spinwin/internal/catalog"
	"spinwin/internal/clock"
	"spinwin/internal/config"
	"spinwin/internal/db"
	"spinwin/internal/flow"
	"spinwin/internal/handlers"
	"spinwin/internal/kiosk"
	"spinwin/internal/logging"
	"spinwin/internal/result"
	"spinwin/internal/spin"
	"spinwin/internal/store"
	"spinwin/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if cfg.JWTSecret == "" || cfg.JWTSecret == "change-me" {
		logger.Warn().Msg("JWT_SECRET is not set, kiosk tokens use the default secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mysql, err := db.NewMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("mysql error")
	}
	rdb, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis error")
	}

	plays := store.NewPlays(mysql)
	if plays.Enabled() {
		if err := plays.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("play log schema error")
		}
	} else {
		logger.Info().Msg("MYSQL_DSN empty, play log disabled")
	}

	deps := kiosk.Deps{
		Scheduler: clock.Real(),
		Log:       logging.WithComponent(logger, "kiosk"),
	}
	if plays.Enabled() {
		deps.Plays = plays
	}
	var source catalog.Source
	if cfg.Offline() {
		logger.Warn().Msg("UPSTREAM_BASE_URL empty, running on the demo catalog")
		source = catalog.NewStatic(catalog.DemoRewards())
		deps.Reviewer = upstream.Offline{}
	} else {
		client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, logging.WithComponent(logger, "upstream"))
		source = catalog.NewRemote(client)
		deps.Reviewer = client
		deps.Spins = client
	}
	cat := catalog.NewCached(source, rdb, cfg.CatalogCacheTTL, logging.WithComponent(logger, "catalog"))
	deps.Catalog = cat

	sessions := kiosk.NewRegistry(deps, kiosk.Options{
		Flow: flow.Options{
			ReviewRequired: cfg.ReviewRequired,
			SkipReveal:     cfg.SkipReveal,
			SlideInterval:  cfg.SlideInterval,
			SlideCount:     cfg.SlideCount,
			AutoReturn:     cfg.AutoReturn,
		},
		Spin:         spin.Config{Animation: cfg.SpinAnimation, Settle: cfg.SpinSettle},
		BaseRotation: cfg.BaseRotationDeg,
		Result:       result.Options{SiteURL: cfg.SiteURL, ValidDays: cfg.PrizeValidDays},
	})

	srv := handlers.NewServer(cfg, mysql, rdb, sessions, cat, plays, logger)
	srv.Start(ctx)
	if cfg.PlayPrunerInServer {
		pruner := store.NewPruner(plays, cfg.PlayRetention, cfg.PlayPruneInterval, logging.WithComponent(logger, "pruner"))
		go pruner.Run(ctx)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(srv, webassets.EmbeddedPages),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Bool("offline", cfg.Offline()).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	srv.Hub.CloseAll()
	sessions.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
	if mysql != nil {
		_ = mysql.Close()
	}
}
