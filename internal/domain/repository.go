package domain

import "context"

// InvocationRepository persists the invocation journal.
type InvocationRepository interface {
	Create(ctx context.Context, inv *Invocation) error
	UpdateStatus(ctx context.Context, id string, status InvocationStatus, errMsg *string, slot *uint64) error
	GetByID(ctx context.Context, id string) (*Invocation, error)
	ListRecent(ctx context.Context, limit int) ([]Invocation, error)
	ListPending(ctx context.Context, limit int) ([]Invocation, error)
}
