package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"solaudit/internal/domain"
)

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryInvocationRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := r.Create(ctx, &domain.Invocation{ID: id, Status: domain.InvocationPending}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := r.Create(ctx, &domain.Invocation{ID: "a", Status: domain.InvocationPending}); err == nil {
		t.Fatal("expected duplicate id to fail")
	}
	if err := r.Create(ctx, &domain.Invocation{ID: "x", Status: "BOGUS"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("invalid status err = %v", err)
	}

	msg := "boom"
	slot := uint64(9)
	if err := r.UpdateStatus(ctx, "b", domain.InvocationFailed, &msg, &slot); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := r.UpdateStatus(ctx, "missing", domain.InvocationFailed, nil, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing update err = %v", err)
	}

	got, err := r.GetByID(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.InvocationFailed || got.ErrorMessage != "boom" || got.Slot != 9 {
		t.Fatalf("unexpected invocation: %+v", got)
	}
	if string(got.Args) != "{}" {
		t.Fatalf("args = %s, want {}", got.Args)
	}

	pending, _ := r.ListPending(ctx, 10)
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].ID != "c" {
		t.Fatalf("pending = %+v", pending)
	}
	recent, _ := r.ListRecent(ctx, 2)
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("recent = %+v", recent)
	}
}
