package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"

	"solaudit/internal/adapter/repo"
	"solaudit/internal/anchor"
	"solaudit/internal/infra"
	"solaudit/internal/ledger"
	"solaudit/internal/workspace"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	invocations := repo.NewInvocationRepository(infra.NewSQLRunner(pool, logger))
	if err := invocations.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: ensure schema failed")
	}

	endpoint := rpc.LocalNet_RPC
	if cfg.ProviderURL != "" {
		if endpoint, err = workspace.ResolveCluster(cfg.ProviderURL); err != nil {
			logger.Fatal().Err(err).Msg("worker: invalid ANCHOR_PROVIDER_URL")
		}
	}
	connLog := infra.Component(logger, "anchor")
	conn := anchor.NewConnection(anchor.ConnectionOptions{
		Endpoint:     endpoint,
		Commitment:   rpc.CommitmentType(cfg.Commitment),
		RateLimit:    cfg.RPCRateLimit,
		PollInterval: cfg.ConfirmPollInterval,
		Logger:       &connLog,
	})

	reconcilerLog := infra.Component(logger, "worker")
	reconciler := ledger.NewReconciler(invocations, conn, ledger.ReconcilerOptions{
		Commitment: rpc.CommitmentType(cfg.Commitment),
		PendingTTL: cfg.WorkerPendingTTL,
		BatchSize:  cfg.WorkerBatchSize,
		Logger:     &reconcilerLog,
	})

	logger.Info().Str("endpoint", endpoint).Msg("worker: started")
	if err := reconciler.Run(ctx, cfg.WorkerPollInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
