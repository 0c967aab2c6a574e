package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/challenge"
	appcfg "github.com/park285/cheese-chess-server/internal/config"
	"github.com/park285/cheese-chess-server/internal/httpapi"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	svcchess "github.com/park285/cheese-chess-server/internal/service/chess"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	chess, err := svcchess.NewService(svcchess.NewSVGBoardRenderer(64), msgs, svcchess.Config{
		DefaultTimeLeft: cfg.DefaultTimeControl.Base,
	}, logger.Named("chess"))
	if err != nil {
		log.Fatalf("chess init error: %v", err)
	}

	deps := httpapi.Deps{Chess: chess, Messages: msgs}

	// Live games need Redis; finished-game history additionally needs Postgres.
	var games *pvpchess.Manager
	var repo *pvpchess.Repository
	if cfg.PvPEnabled() {
		games, err = pvpchess.NewManager(cfg.RedisURL, pvpchess.Config{
			TTL:                cfg.GameTTL,
			DefaultTimeControl: cfg.DefaultTimeControl,
		})
		if err != nil {
			log.Fatalf("pvp manager init error: %v", err)
		}
		deps.Games = games
		deps.Challenges = challenge.NewRegistry(challenge.DefaultTTL, nil)

		if cfg.DatabaseURL != "" {
			repo, err = pvpchess.NewRepository(cfg.DatabaseURL)
			if err != nil {
				log.Fatalf("pvp repo init error: %v", err)
			}
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := repo.EnsureSchema(sctx); err != nil {
				cancel()
				log.Fatalf("pvp schema error: %v", err)
			}
			cancel()
			games.AttachRepository(repo)
			deps.History = repo
		}
	}

	srv, err := httpapi.New(deps, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})
	if err != nil {
		log.Fatalf("http init error: %v", err)
	}

	logger.Info("server_start",
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("pvp", games != nil),
		zap.Bool("history", repo != nil),
		zap.String("default_time_control", cfg.DefaultTimeControl.String()),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.HTTPAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("server_stop", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http_listen_error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Close(ctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	if games != nil {
		_ = games.Close()
	}
	if repo != nil {
		_ = repo.Close()
	}
}
