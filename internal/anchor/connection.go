package anchor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"solaudit/internal/infra"
)

// ConnectionOptions configures a Connection.
type ConnectionOptions struct {
	Endpoint     string
	Commitment   rpc.CommitmentType
	RateLimit    int // requests per second, 0 disables throttling
	PollInterval time.Duration
	Logger       *infra.Logger
	Registerer   prometheus.Registerer
}

// Connection is a throttled, instrumented JSON-RPC client for one cluster.
type Connection struct {
	client       *rpc.Client
	endpoint     string
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	limiter      *rate.Limiter
	latency      *prometheus.HistogramVec
	logger       *infra.Logger
}

// NewConnection builds a Connection with defaults for unset options.
func NewConnection(opts ConnectionOptions) *Connection {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = rpc.LocalNet_RPC
	}
	commitment := opts.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentProcessed
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 400 * time.Millisecond
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Connection{
		client:       rpc.New(endpoint),
		endpoint:     endpoint,
		commitment:   commitment,
		pollInterval: poll,
		limiter:      limiter,
		latency:      rpcLatency(opts.Registerer),
		logger:       logger,
	}
}

// Endpoint returns the RPC URL.
func (c *Connection) Endpoint() string { return c.endpoint }

// Commitment returns the default commitment for reads.
func (c *Connection) Commitment() rpc.CommitmentType { return c.commitment }

// RPC exposes the underlying solana-go client for calls not wrapped here.
func (c *Connection) RPC() *rpc.Client { return c.client }

func (c *Connection) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("anchor: %s: %w", method, err)
		}
	}
	start := time.Now()
	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.latency.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("anchor: %s: %w", method, err)
	}
	return nil
}

// LatestBlockhash returns the most recent blockhash at the default commitment.
func (c *Connection) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var out *rpc.GetLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", func(ctx context.Context) (err error) {
		out, err = c.client.GetLatestBlockhash(ctx, c.commitment)
		return err
	})
	if err != nil {
		return solana.Hash{}, err
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, errors.New("anchor: getLatestBlockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// SendTransaction submits a signed transaction. Preflight failures come back
// as *ProgramError or *TransactionError.
func (c *Connection) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	var sig solana.Signature
	err := c.call(ctx, "sendTransaction", func(ctx context.Context) (err error) {
		sig, err = c.client.SendTransactionWithOpts(ctx, tx, opts)
		return err
	})
	if err != nil {
		return solana.Signature{}, translateRPCError(err)
	}
	return sig, nil
}

// SignatureStatuses looks up the status of each signature. Unknown
// signatures yield nil entries.
func (c *Connection) SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*rpc.SignatureStatusesResult, error) {
	var out *rpc.GetSignatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", func(ctx context.Context) (err error) {
		out, err = c.client.GetSignatureStatuses(ctx, false, sigs...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// ConfirmSignature polls until sig reaches commitment, fails on chain, or
// ctx ends. A landed transaction that failed returns its status along with
// the decoded error.
func (c *Connection) ConfirmSignature(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*rpc.SignatureStatusesResult, error) {
	if commitment == "" {
		commitment = c.commitment
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		statuses, err := c.SignatureStatuses(ctx, sig)
		switch {
		case err != nil:
			lastErr = err
			c.logger.Debug().Err(err).Str("signature", sig.String()).Msg("anchor: status poll failed")
		case len(statuses) > 0 && statuses[0] != nil:
			st := statuses[0]
			if st.Err != nil {
				return st, DecodeTransactionError(st.Err, nil)
			}
			if StatusReached(st, commitment) {
				c.logger.Debug().
					Str("signature", sig.String()).
					Uint64("slot", st.Slot).
					Str("status", string(st.ConfirmationStatus)).
					Msg("anchor: confirmed transaction")
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && !errors.Is(lastErr, ctx.Err()) {
				return nil, fmt.Errorf("%w: %s: %v", ErrConfirmTimeout, sig, lastErr)
			}
			return nil, fmt.Errorf("%w: %s", ErrConfirmTimeout, sig)
		case <-ticker.C:
		}
	}
}

// StatusReached reports whether st has reached commitment.
func StatusReached(st *rpc.SignatureStatusesResult, commitment rpc.CommitmentType) bool {
	return st != nil && statusRank(st) >= commitmentRank(commitment)
}

func commitmentRank(c rpc.CommitmentType) int {
	switch c {
	case rpc.CommitmentFinalized:
		return 3
	case rpc.CommitmentConfirmed:
		return 2
	default:
		return 1
	}
}

func statusRank(st *rpc.SignatureStatusesResult) int {
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return 3
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusProcessed:
		return 1
	}
	// Older nodes omit confirmationStatus; null confirmations means rooted.
	if st.Confirmations == nil {
		return 3
	}
	return 1
}

// Balance returns the lamport balance of key.
func (c *Connection) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	var out *rpc.GetBalanceResult
	err := c.call(ctx, "getBalance", func(ctx context.Context) (err error) {
		out, err = c.client.GetBalance(ctx, key, c.commitment)
		return err
	})
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// RequestAirdrop asks the cluster faucet for lamports.
func (c *Connection) RequestAirdrop(ctx context.Context, key solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	err := c.call(ctx, "requestAirdrop", func(ctx context.Context) (err error) {
		sig, err = c.client.RequestAirdrop(ctx, key, lamports, c.commitment)
		return err
	})
	return sig, err
}

// AccountInfo fetches an account. A missing account returns ErrAccountNotFound.
func (c *Connection) AccountInfo(ctx context.Context, key solana.PublicKey) (*rpc.Account, error) {
	var out *rpc.GetAccountInfoResult
	err := c.call(ctx, "getAccountInfo", func(ctx context.Context) (err error) {
		out, err = c.client.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.commitment,
		})
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// Health reports whether the node answers getHealth with "ok".
func (c *Connection) Health(ctx context.Context) error {
	var out string
	err := c.call(ctx, "getHealth", func(ctx context.Context) (err error) {
		out, err = c.client.GetHealth(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if out != rpc.HealthOk {
		return fmt.Errorf("anchor: node unhealthy: %s", out)
	}
	return nil
}

// WaitForHealthy polls Health until it succeeds or ctx ends.
func (c *Connection) WaitForHealthy(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		err := c.Health(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("anchor: node at %s not healthy: %w", c.endpoint, err)
		case <-ticker.C:
		}
	}
}
