// Package app wires the local validator, its HTTP surface and the slot clock
// into one runnable unit shared by cmd/localnet and `solaudit test`.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"solaudit/internal/http/handlers"
	"solaudit/internal/http/httpapi"
	"solaudit/internal/infra"
	"solaudit/internal/localnet"
	"solaudit/internal/middleware"
	"solaudit/internal/programs/solanaaudit"
	"solaudit/internal/workspace"
)

const shutdownGrace = 5 * time.Second

type Localnet struct {
	Validator *localnet.Validator
	Registry  *prometheus.Registry

	server *infra.HTTPServer
	logger infra.Logger
}

// NewLocalnet builds a validator from cfg. A non-nil workspace contributes
// its fixtures and the localnet address of the audit program.
func NewLocalnet(cfg *infra.Config, ws *workspace.Workspace, logger infra.Logger) (*Localnet, error) {
	var (
		fixtures  []workspace.AccountFixture
		programID solana.PublicKey
	)
	if ws != nil {
		var err error
		if fixtures, err = ws.Fixtures(); err != nil {
			return nil, fmt.Errorf("app: load fixtures: %w", err)
		}
		if id, err := ws.ProgramID("localnet", solanaaudit.ProgramName); err == nil {
			programID = id
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log := infra.Component(logger, "localnet")
	v, err := localnet.New(localnet.Options{
		SlotInterval:       cfg.LocalnetSlotTime,
		FinalityDepth:      uint64(cfg.FinalityDepth),
		MaxAirdropLamports: cfg.MaxAirdropLamports,
		AuditProgramID:     programID,
		Fixtures:           fixtures,
		Logger:             &log,
		Registerer:         reg,
	})
	if err != nil {
		return nil, fmt.Errorf("app: start validator: %w", err)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("app: TRUSTED_PROXIES: %w", err)
	}
	httpLog := infra.Component(logger, "http")
	router := httpapi.NewRouter(handlers.NewApp(v, reg, &httpLog), httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		TrustedProxies:     proxies,
	})
	return &Localnet{
		Validator: v,
		Registry:  reg,
		server:    infra.NewHTTPServer(cfg, router),
		logger:    log,
	}, nil
}

// ListenAndServe serves on the configured port until ctx ends.
func (l *Localnet) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.server.Addr())
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", l.server.Addr(), err)
	}
	return l.Serve(ctx, ln)
}

// Serve runs the slot clock and the JSON-RPC server on ln until ctx ends,
// then shuts the server down gracefully. A clean shutdown returns nil.
func (l *Localnet) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return l.Validator.Run(gctx)
	})
	g.Go(func() error {
		l.logger.Info().Str("addr", ln.Addr().String()).Msg("localnet: listening")
		return l.server.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := l.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	l.logger.Info().Uint64("slot", l.Validator.Slot()).Msg("localnet: stopped")
	return err
}
