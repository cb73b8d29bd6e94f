package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"solaudit/internal/domain"
)

// InvocationRepositoryMemory keeps the journal in process memory.
type InvocationRepositoryMemory struct {
	mu    sync.RWMutex
	items map[string]*domain.Invocation
	now   func() time.Time
}

func NewMemoryInvocationRepository() *InvocationRepositoryMemory {
	return &InvocationRepositoryMemory{items: make(map[string]*domain.Invocation), now: time.Now}
}

func (r *InvocationRepositoryMemory) Create(_ context.Context, inv *domain.Invocation) error {
	if inv == nil {
		return fmt.Errorf("repo: invocation is required")
	}
	if !inv.Status.Valid() {
		return domain.ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[inv.ID]; ok {
		return fmt.Errorf("repo: invocation %s already exists", inv.ID)
	}
	now := r.now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	if len(inv.Args) == 0 {
		inv.Args = json.RawMessage(`{}`)
	}
	stored := *inv
	r.items[inv.ID] = &stored
	return nil
}

func (r *InvocationRepositoryMemory) UpdateStatus(_ context.Context, id string, status domain.InvocationStatus, errMsg *string, slot *uint64) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	inv.Status = status
	if errMsg != nil {
		inv.ErrorMessage = *errMsg
	}
	if slot != nil {
		inv.Slot = *slot
	}
	inv.UpdatedAt = r.now()
	return nil
}

func (r *InvocationRepositoryMemory) GetByID(_ context.Context, id string) (*domain.Invocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (r *InvocationRepositoryMemory) ListRecent(_ context.Context, limit int) ([]domain.Invocation, error) {
	items := r.snapshot(func(*domain.Invocation) bool { return true })
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return truncate(items, limit), nil
}

func (r *InvocationRepositoryMemory) ListPending(_ context.Context, limit int) ([]domain.Invocation, error) {
	items := r.snapshot(func(inv *domain.Invocation) bool { return inv.Status == domain.InvocationPending })
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return truncate(items, limit), nil
}

func (r *InvocationRepositoryMemory) snapshot(keep func(*domain.Invocation) bool) []domain.Invocation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Invocation, 0, len(r.items))
	for _, inv := range r.items {
		if keep(inv) {
			out = append(out, *inv)
		}
	}
	return out
}

func truncate(items []domain.Invocation, limit int) []domain.Invocation {
	if limit <= 0 {
		limit = 20
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

var _ domain.InvocationRepository = (*InvocationRepositoryMemory)(nil)
