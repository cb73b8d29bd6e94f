package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"solaudit/internal/app"
	"solaudit/internal/infra"
	"solaudit/internal/workspace"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ws, err := workspace.Load(cfg.WorkspacePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal().Err(err).Msg("localnet: load workspace failed")
		}
		logger.Info().Str("path", cfg.WorkspacePath).Msg("localnet: no workspace, starting without fixtures")
		ws = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := app.NewLocalnet(cfg, ws, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("localnet: init failed")
	}
	if err := l.ListenAndServe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("localnet: stopped with error")
	}
}
