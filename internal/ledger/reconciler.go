package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solaudit/internal/anchor"
	"solaudit/internal/domain"
	"solaudit/internal/infra"
)

// StatusFetcher is satisfied by *anchor.Connection.
type StatusFetcher interface {
	SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*rpc.SignatureStatusesResult, error)
}

type ReconcilerOptions struct {
	Commitment rpc.CommitmentType
	PendingTTL time.Duration
	BatchSize  int
	Logger     *infra.Logger
}

// Reconciler resolves PENDING invocations from their on-chain status.
type Reconciler struct {
	repo       domain.InvocationRepository
	fetcher    StatusFetcher
	commitment rpc.CommitmentType
	ttl        time.Duration
	batch      int
	logger     *infra.Logger
	now        func() time.Time
}

func NewReconciler(repo domain.InvocationRepository, fetcher StatusFetcher, opts ReconcilerOptions) *Reconciler {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	// getSignatureStatuses accepts at most 256 signatures.
	if opts.BatchSize <= 0 || opts.BatchSize > 256 {
		opts.BatchSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = infra.DiscardLogger()
	}
	return &Reconciler{
		repo:       repo,
		fetcher:    fetcher,
		commitment: opts.Commitment,
		ttl:        opts.PendingTTL,
		batch:      opts.BatchSize,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Run calls RunOnce every interval until ctx ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info().Dur("interval", interval).Msg("ledger: reconciler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("ledger: reconcile pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce resolves one batch of pending invocations and returns how many
// changed status.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.ListPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	now := r.now()

	var (
		sigs    []solana.Signature
		tracked []domain.Invocation
		changed int
	)
	for _, inv := range pending {
		sig, err := solana.SignatureFromBase58(inv.Signature)
		if err != nil {
			if expired(inv, r.ttl, now) {
				changed += r.update(ctx, inv, domain.InvocationExpired, "no signature recorded", nil)
			}
			continue
		}
		sigs = append(sigs, sig)
		tracked = append(tracked, inv)
	}
	if len(sigs) == 0 {
		return changed, nil
	}

	statuses, err := r.fetcher.SignatureStatuses(ctx, sigs...)
	if err != nil {
		return changed, err
	}
	for i, inv := range tracked {
		var st *rpc.SignatureStatusesResult
		if i < len(statuses) {
			st = statuses[i]
		}
		switch {
		case st == nil:
			if expired(inv, r.ttl, now) {
				changed += r.update(ctx, inv, domain.InvocationExpired, "signature not found before pending ttl", nil)
			}
		case st.Err != nil:
			slot := st.Slot
			msg := anchor.DecodeTransactionError(st.Err, nil).Error()
			changed += r.update(ctx, inv, domain.InvocationFailed, msg, &slot)
		case anchor.StatusReached(st, r.commitment):
			slot := st.Slot
			changed += r.update(ctx, inv, domain.InvocationConfirmed, "", &slot)
		}
	}
	return changed, nil
}

func (r *Reconciler) update(ctx context.Context, inv domain.Invocation, status domain.InvocationStatus, msg string, slot *uint64) int {
	var errMsg *string
	if msg != "" {
		errMsg = &msg
	}
	if err := r.repo.UpdateStatus(ctx, inv.ID, status, errMsg, slot); err != nil {
		r.logger.Error().Err(err).Str("invocation_id", inv.ID).Msg("ledger: update status failed")
		return 0
	}
	r.logger.Info().
		Str("invocation_id", inv.ID).
		Str("signature", inv.Signature).
		Str("status", string(status)).
		Msg("ledger: invocation resolved")
	return 1
}

func expired(inv domain.Invocation, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(inv.CreatedAt) > ttl
}
