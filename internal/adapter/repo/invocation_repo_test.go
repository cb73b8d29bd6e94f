package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"solaudit/internal/domain"
	"solaudit/internal/sqlinline"
)

type stubExecutor struct {
	err      error
	tag      pgconn.CommandTag
	row      func(dest ...any) error
	rows     []domain.Invocation
	lastSQL  string
	lastArgs []any
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.lastSQL = query
	s.lastArgs = args
	return s.tag, s.err
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.lastSQL = query
	s.lastArgs = args
	return stubRow{scan: s.row, err: s.err}
}

func (s *stubExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.lastSQL = query
	s.lastArgs = args
	if s.err != nil {
		return nil, s.err
	}
	return &invocationRows{rows: s.rows}, nil
}

type stubRow struct {
	scan func(dest ...any) error
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type invocationRows struct {
	rows []domain.Invocation
	idx  int
}

func (r *invocationRows) Close()                                       {}
func (r *invocationRows) Err() error                                   { return nil }
func (r *invocationRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *invocationRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *invocationRows) RawValues() [][]byte                          { return nil }
func (r *invocationRows) Conn() *pgx.Conn                              { return nil }

func (r *invocationRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *invocationRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *invocationRows) Scan(dest ...any) error {
	if len(dest) != 11 {
		return fmt.Errorf("unexpected scan args: %d", len(dest))
	}
	return fillInvocation(r.rows[r.idx-1], dest)
}

func fillInvocation(inv domain.Invocation, dest []any) error {
	*dest[0].(*string) = inv.ID
	*dest[1].(*string) = inv.Cluster
	*dest[2].(*string) = inv.ProgramID
	*dest[3].(*string) = inv.Instruction
	*dest[4].(*string) = inv.Signature
	*dest[5].(*string) = string(inv.Status)
	*dest[6].(*string) = inv.ErrorMessage
	*dest[7].(*int64) = int64(inv.Slot)
	*dest[8].(*[]byte) = []byte(inv.Args)
	*dest[9].(*time.Time) = inv.CreatedAt
	*dest[10].(*time.Time) = inv.UpdatedAt
	return nil
}

func TestCreateInvocationPassesColumnsInOrder(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exec := &stubExecutor{row: func(dest ...any) error {
		*dest[0].(*time.Time) = created
		*dest[1].(*time.Time) = created
		return nil
	}}
	repo := NewInvocationRepository(exec)

	inv := &domain.Invocation{
		ID:          "2b0c4a52-5b1e-4b43-9c5f-0d36f3f6e0a1",
		Cluster:     "localnet",
		ProgramID:   "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
		Instruction: "initialize",
		Signature:   "5sig",
		Status:      domain.InvocationConfirmed,
		Slot:        42,
	}
	if err := repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if exec.lastSQL != sqlinline.QInsertInvocation {
		t.Fatalf("unexpected query issued")
	}
	if len(exec.lastArgs) != 9 {
		t.Fatalf("expected 9 args, got %d", len(exec.lastArgs))
	}
	if v, ok := exec.lastArgs[5].(string); !ok || v != "CONFIRMED" {
		t.Fatalf("expected status argument CONFIRMED, got %T %v", exec.lastArgs[5], exec.lastArgs[5])
	}
	if v, ok := exec.lastArgs[7].(int64); !ok || v != 42 {
		t.Fatalf("expected slot argument 42, got %T %v", exec.lastArgs[7], exec.lastArgs[7])
	}
	if v, ok := exec.lastArgs[8].([]byte); !ok || string(v) != "{}" {
		t.Fatalf("expected empty args object, got %T %v", exec.lastArgs[8], exec.lastArgs[8])
	}
	if !inv.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt not filled: %v", inv.CreatedAt)
	}
}

func TestCreateInvocationRejectsUnknownStatus(t *testing.T) {
	repo := NewInvocationRepository(&stubExecutor{})
	err := repo.Create(context.Background(), &domain.Invocation{ID: "x", Status: "DONE"})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo := NewInvocationRepository(&stubExecutor{tag: pgconn.NewCommandTag("UPDATE 0")})
	err := repo.UpdateStatus(context.Background(), "missing", domain.InvocationFailed, nil, nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusConvertsSlot(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewInvocationRepository(exec)
	slot := uint64(99)
	msg := "boom"
	if err := repo.UpdateStatus(context.Background(), "id-1", domain.InvocationFailed, &msg, &slot); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	got, ok := exec.lastArgs[3].(*int64)
	if !ok || got == nil || *got != 99 {
		t.Fatalf("expected slot pointer 99, got %T %v", exec.lastArgs[3], exec.lastArgs[3])
	}
}

func TestGetByIDNoRows(t *testing.T) {
	repo := NewInvocationRepository(&stubExecutor{err: pgx.ErrNoRows})
	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPendingScansRows(t *testing.T) {
	rows := []domain.Invocation{
		{ID: "a", Instruction: "initialize", Status: domain.InvocationPending, Signature: "sig-a"},
		{ID: "b", Instruction: "slashing", Status: domain.InvocationPending, Signature: "sig-b", Slot: 7},
	}
	exec := &stubExecutor{rows: rows}
	repo := NewInvocationRepository(exec)

	items, err := repo.ListPending(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListPending error: %v", err)
	}
	if exec.lastSQL != sqlinline.QListPendingInvocations {
		t.Fatalf("unexpected query issued")
	}
	if v := exec.lastArgs[0].(int); v != 20 {
		t.Fatalf("expected default limit 20, got %d", v)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Slot != 7 || items[1].Signature != "sig-b" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}
