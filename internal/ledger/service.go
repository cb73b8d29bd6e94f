// Package ledger journals program invocations and reconciles the ones whose
// confirmation was still outstanding when the client gave up waiting.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"solaudit/internal/anchor"
	"solaudit/internal/domain"
	"solaudit/internal/infra"
)

// Meta identifies the call being journaled.
type Meta struct {
	Cluster     string
	ProgramID   solana.PublicKey
	Instruction string
	Args        any
}

// SendFunc submits one transaction and waits for its confirmation.
type SendFunc func(ctx context.Context) (solana.Signature, error)

type Service struct {
	repo   domain.InvocationRepository
	logger *infra.Logger
}

func NewService(repo domain.InvocationRepository, logger *infra.Logger) *Service {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Service{repo: repo, logger: logger}
}

// Track runs send and journals its outcome. The error from send is returned
// unchanged; a journal write failure is only logged.
func (s *Service) Track(ctx context.Context, meta Meta, send SendFunc) (*domain.Invocation, error) {
	sig, sendErr := send(ctx)

	inv := &domain.Invocation{
		ID:          uuid.NewString(),
		Cluster:     meta.Cluster,
		ProgramID:   meta.ProgramID.String(),
		Instruction: meta.Instruction,
		Status:      classify(sig, sendErr),
	}
	if !sig.IsZero() {
		inv.Signature = sig.String()
	}
	if inv.Status == domain.InvocationFailed {
		inv.ErrorMessage = sendErr.Error()
	}
	if meta.Args != nil {
		raw, err := json.Marshal(meta.Args)
		if err != nil {
			return nil, fmt.Errorf("ledger: encode args: %w", err)
		}
		inv.Args = raw
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		s.logger.Error().Err(err).
			Str("instruction", inv.Instruction).
			Str("signature", inv.Signature).
			Msg("ledger: record invocation failed")
		return inv, sendErr
	}
	s.logger.Debug().
		Str("invocation_id", inv.ID).
		Str("instruction", inv.Instruction).
		Str("status", string(inv.Status)).
		Msg("ledger: recorded invocation")
	return inv, sendErr
}

// Recent lists the newest journal entries.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Invocation, error) {
	return s.repo.ListRecent(ctx, limit)
}

func classify(sig solana.Signature, err error) domain.InvocationStatus {
	switch {
	case err == nil:
		return domain.InvocationConfirmed
	case !sig.IsZero() && errors.Is(err, anchor.ErrConfirmTimeout):
		return domain.InvocationPending
	default:
		return domain.InvocationFailed
	}
}
