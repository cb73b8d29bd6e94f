package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jackc/pgx/v5/pgxpool"

	"solaudit/internal/adapter/repo"
	"solaudit/internal/anchor"
	"solaudit/internal/domain"
	"solaudit/internal/infra"
	"solaudit/internal/ledger"
	"solaudit/internal/programs/solanaaudit"
	"solaudit/internal/wallet"
	"solaudit/internal/workspace"
)

// session is everything a client command needs: provider, program client
// and the invocation journal.
type session struct {
	cluster  string
	provider *anchor.Provider
	client   *solanaaudit.Client
	ledger   *ledger.Service
	pool     *pgxpool.Pool
}

func (s *session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// clusterURL resolves the endpoint: flag, ANCHOR_PROVIDER_URL, Anchor.toml, localnet.
func clusterURL() (string, error) {
	switch {
	case clusterFlag != "":
		return workspace.ResolveCluster(clusterFlag)
	case cfg.ProviderURL != "":
		return workspace.ResolveCluster(cfg.ProviderURL)
	case ws != nil && ws.Provider.Cluster != "":
		return ws.ClusterURL()
	}
	return rpc.LocalNet_RPC, nil
}

func walletPath() string {
	switch {
	case walletFlag != "":
		return workspace.ExpandPath(walletFlag)
	case cfg.WalletPath != "":
		return workspace.ExpandPath(cfg.WalletPath)
	case ws != nil && ws.Provider.Wallet != "":
		return ws.WalletPath()
	}
	return ""
}

func loadWallet() (*wallet.Keypair, error) {
	path := walletPath()
	if path == "" {
		return nil, anchor.ErrWalletEnvNotSet
	}
	return wallet.Load(path)
}

func newConnection(endpoint string) *anchor.Connection {
	log := infra.Component(logger, "anchor")
	return anchor.NewConnection(anchor.ConnectionOptions{
		Endpoint:     endpoint,
		Commitment:   rpc.CommitmentType(cfg.Commitment),
		RateLimit:    cfg.RPCRateLimit,
		PollInterval: cfg.ConfirmPollInterval,
		Logger:       &log,
	})
}

type sessionOptions struct {
	endpoint string
	keypair  *wallet.Keypair
	// readOnly tolerates a missing wallet for commands that only read state.
	readOnly bool
}

// providerFromFlags reports whether a flag or Anchor.toml supplies provider settings.
func providerFromFlags() bool {
	return clusterFlag != "" || walletFlag != "" ||
		(ws != nil && (ws.Provider.Cluster != "" || ws.Provider.Wallet != ""))
}

func confirmOptions() anchor.ConfirmOptions {
	return anchor.ConfirmOptions{
		Commitment:    rpc.CommitmentType(cfg.Commitment),
		SkipPreflight: cfg.SkipPreflight,
		Timeout:       cfg.ConfirmTimeout,
	}
}

// newProvider builds the provider for opts. Without an explicit endpoint,
// keypair, flag or Anchor.toml the environment decides, as AnchorProvider.env() does.
func newProvider(opts sessionOptions, log *infra.Logger) (*anchor.Provider, error) {
	if opts.endpoint == "" && opts.keypair == nil && !opts.readOnly && !providerFromFlags() {
		connLog := infra.Component(logger, "anchor")
		return anchor.ProviderFromEnvWith(anchor.EnvOptions{
			Connection: anchor.ConnectionOptions{
				RateLimit:    cfg.RPCRateLimit,
				PollInterval: cfg.ConfirmPollInterval,
				Logger:       &connLog,
			},
			Confirm: confirmOptions(),
			Logger:  log,
		})
	}

	endpoint := opts.endpoint
	if endpoint == "" {
		var err error
		if endpoint, err = clusterURL(); err != nil {
			return nil, err
		}
	}
	kp := opts.keypair
	if kp == nil {
		var err error
		kp, err = loadWallet()
		if err != nil && !(opts.readOnly && errors.Is(err, anchor.ErrWalletEnvNotSet)) {
			return nil, err
		}
	}
	return anchor.NewProvider(newConnection(endpoint), kp, confirmOptions(), log), nil
}

// openSession connects to the cluster. Without a keypair the configured wallet is loaded.
func openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	log := infra.Component(logger, "solanaaudit")
	provider, err := newProvider(opts, &log)
	if err != nil {
		return nil, err
	}
	endpoint := provider.Connection.Endpoint()

	programID, err := auditProgramID(endpoint)
	if err != nil {
		return nil, err
	}
	client, err := solanaaudit.NewClient(provider, programID, &log)
	if err != nil {
		return nil, err
	}

	s := &session{cluster: endpoint, provider: provider, client: client}
	store, pool, err := openJournal(ctx)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	ledgerLog := infra.Component(logger, "ledger")
	s.ledger = ledger.NewService(store, &ledgerLog)
	return s, nil
}

// auditProgramID picks the workspace address for the cluster, or the declared id.
func auditProgramID(endpoint string) (solana.PublicKey, error) {
	if ws == nil {
		return solanaaudit.DefaultProgramID, nil
	}
	cluster := ws.Provider.Cluster
	if cluster == "" || strings.Contains(endpoint, "127.0.0.1") || strings.Contains(endpoint, "localhost") {
		cluster = "localnet"
	}
	id, err := ws.ProgramID(cluster, solanaaudit.ProgramName)
	if errors.Is(err, workspace.ErrProgramNotFound) {
		return solanaaudit.DefaultProgramID, nil
	}
	return id, err
}

// openJournal uses Postgres when DATABASE_URL is set and memory otherwise.
func openJournal(ctx context.Context) (domain.InvocationRepository, *pgxpool.Pool, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if errors.Is(err, infra.ErrDatabaseDisabled) {
		return repo.NewMemoryInvocationRepository(), nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	pg := repo.NewInvocationRepository(infra.NewSQLRunner(pool, logger))
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool, nil
}

// track sends through the ledger so every call lands in the journal.
func (s *session) track(ctx context.Context, instruction string, args any, send ledger.SendFunc) (solana.Signature, error) {
	inv, err := s.ledger.Track(ctx, ledger.Meta{
		Cluster:     s.cluster,
		ProgramID:   s.client.Program().ID(),
		Instruction: instruction,
		Args:        args,
	}, send)
	if inv == nil || inv.Signature == "" {
		return solana.Signature{}, err
	}
	sig, perr := solana.SignatureFromBase58(inv.Signature)
	if perr != nil {
		return solana.Signature{}, fmt.Errorf("ledger: stored signature: %w", perr)
	}
	return sig, err
}
