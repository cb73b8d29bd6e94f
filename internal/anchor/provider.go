package anchor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solaudit/internal/infra"
	"solaudit/internal/wallet"
)

// ConfirmOptions controls how transactions are submitted and awaited.
type ConfirmOptions struct {
	Commitment          rpc.CommitmentType
	PreflightCommitment rpc.CommitmentType
	SkipPreflight       bool
	Timeout             time.Duration
}

// DefaultConfirmOptions matches the defaults of the Anchor TypeScript client.
func DefaultConfirmOptions() ConfirmOptions {
	return ConfirmOptions{
		Commitment:          rpc.CommitmentProcessed,
		PreflightCommitment: rpc.CommitmentProcessed,
		Timeout:             30 * time.Second,
	}
}

// Provider pairs a cluster connection with the wallet that pays for and
// signs transactions.
type Provider struct {
	Connection *Connection
	Wallet     *wallet.Keypair
	Opts       ConfirmOptions

	logger *infra.Logger
}

// NewProvider assembles a provider. Zero-valued options take the defaults.
func NewProvider(conn *Connection, w *wallet.Keypair, opts ConfirmOptions, logger *infra.Logger) *Provider {
	defaults := DefaultConfirmOptions()
	if opts.Commitment == "" {
		opts.Commitment = defaults.Commitment
	}
	if opts.PreflightCommitment == "" {
		opts.PreflightCommitment = opts.Commitment
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Provider{Connection: conn, Wallet: w, Opts: opts, logger: logger}
}

// ProviderFromEnv reads ANCHOR_PROVIDER_URL (default localnet) and the
// required ANCHOR_WALLET keypair path.
func ProviderFromEnv() (*Provider, error) {
	return ProviderFromEnvWith(EnvOptions{})
}

// EnvOptions tunes the provider built by ProviderFromEnvWith. The endpoint
// and wallet always come from the environment.
type EnvOptions struct {
	Connection ConnectionOptions
	Confirm    ConfirmOptions
	Logger     *infra.Logger
}

func ProviderFromEnvWith(opts EnvOptions) (*Provider, error) {
	url := strings.TrimSpace(os.Getenv("ANCHOR_PROVIDER_URL"))
	if url == "" {
		url = rpc.LocalNet_RPC
	}
	path := strings.TrimSpace(os.Getenv("ANCHOR_WALLET"))
	if path == "" {
		return nil, ErrWalletEnvNotSet
	}
	kp, err := wallet.Load(path)
	if err != nil {
		return nil, err
	}
	connOpts := opts.Connection
	connOpts.Endpoint = url
	if connOpts.Commitment == "" {
		connOpts.Commitment = opts.Confirm.Commitment
	}
	return NewProvider(NewConnection(connOpts), kp, opts.Confirm, opts.Logger), nil
}

// PublicKey returns the wallet address.
func (p *Provider) PublicKey() solana.PublicKey {
	return p.Wallet.PublicKey()
}

// SendAndConfirm builds a legacy transaction paid by the provider wallet,
// signs it with the wallet and any extra signers, submits it and waits for
// the configured commitment. Once the node has accepted the transaction its
// signature is returned even when confirmation fails.
func (p *Provider) SendAndConfirm(ctx context.Context, ixs []solana.Instruction, signers ...*wallet.Keypair) (solana.Signature, error) {
	tx, err := p.BuildTransaction(ctx, ixs, signers...)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := p.Connection.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       p.Opts.SkipPreflight,
		PreflightCommitment: p.Opts.PreflightCommitment,
	})
	if err != nil {
		return solana.Signature{}, err
	}
	p.logger.Debug().
		Str("signature", sig.String()).
		Str("endpoint", p.Connection.Endpoint()).
		Msg("anchor: sent transaction")

	confirmCtx, cancel := context.WithTimeout(ctx, p.Opts.Timeout)
	defer cancel()
	if _, err := p.Connection.ConfirmSignature(confirmCtx, sig, p.Opts.Commitment); err != nil {
		return sig, err
	}
	return sig, nil
}

// BuildTransaction returns a signed transaction without sending it.
func (p *Provider) BuildTransaction(ctx context.Context, ixs []solana.Instruction, signers ...*wallet.Keypair) (*solana.Transaction, error) {
	if p.Wallet == nil {
		return nil, wallet.ErrMissingWallet
	}
	blockhash, err := p.Connection.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(p.Wallet.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("anchor: build transaction: %w", err)
	}

	keys := map[solana.PublicKey]*solana.PrivateKey{
		p.Wallet.PublicKey(): &p.Wallet.PrivateKey,
	}
	for _, s := range signers {
		if s != nil {
			keys[s.PublicKey()] = &s.PrivateKey
		}
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		return keys[key]
	}); err != nil {
		return nil, fmt.Errorf("anchor: sign transaction: %w", err)
	}
	return tx, nil
}
