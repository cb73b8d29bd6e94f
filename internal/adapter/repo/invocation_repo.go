package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solaudit/internal/domain"
	"solaudit/internal/infra"
	"solaudit/internal/sqlinline"
)

// InvocationRepositoryPG implements domain.InvocationRepository on PostgreSQL.
type InvocationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewInvocationRepository creates a repository over the given executor.
func NewInvocationRepository(sql infra.SQLExecutor) *InvocationRepositoryPG {
	return &InvocationRepositoryPG{sql: sql}
}

// EnsureSchema creates the journal table when it does not exist yet.
func (r *InvocationRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreateInvocationsTable); err != nil {
		return fmt.Errorf("repo: ensure invocation schema: %w", err)
	}
	return nil
}

// Create inserts a new invocation and fills its timestamps.
func (r *InvocationRepositoryPG) Create(ctx context.Context, inv *domain.Invocation) error {
	if inv == nil {
		return fmt.Errorf("repo: invocation is required")
	}
	if !inv.Status.Valid() {
		return domain.ErrInvalidStatus
	}
	args := inv.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertInvocation,
		inv.ID,
		inv.Cluster,
		inv.ProgramID,
		inv.Instruction,
		inv.Signature,
		string(inv.Status),
		inv.ErrorMessage,
		int64(inv.Slot),
		[]byte(args),
	)
	if err := row.Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return fmt.Errorf("repo: insert invocation: %w", err)
	}
	return nil
}

// UpdateStatus moves an invocation to status, optionally setting the error and slot.
func (r *InvocationRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.InvocationStatus, errMsg *string, slot *uint64) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	var slotArg *int64
	if slot != nil {
		v := int64(*slot)
		slotArg = &v
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateInvocationStatus, id, string(status), errMsg, slotArg)
	if err != nil {
		return fmt.Errorf("repo: update invocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches one invocation.
func (r *InvocationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Invocation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectInvocationByID, id)
	inv, err := scanInvocation(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("repo: get invocation: %w", err)
	}
	return inv, nil
}

// ListRecent returns the newest invocations first.
func (r *InvocationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Invocation, error) {
	return r.list(ctx, sqlinline.QListRecentInvocations, limit)
}

// ListPending returns the oldest pending invocations first.
func (r *InvocationRepositoryPG) ListPending(ctx context.Context, limit int) ([]domain.Invocation, error) {
	return r.list(ctx, sqlinline.QListPendingInvocations, limit)
}

func (r *InvocationRepositoryPG) list(ctx context.Context, query string, limit int) ([]domain.Invocation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list invocations: %w", err)
	}
	defer rows.Close()

	var items []domain.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: scan invocation: %w", err)
		}
		items = append(items, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanInvocation(row pgx.Row) (*domain.Invocation, error) {
	var (
		inv    domain.Invocation
		status string
		slot   int64
		args   []byte
	)
	if err := row.Scan(
		&inv.ID,
		&inv.Cluster,
		&inv.ProgramID,
		&inv.Instruction,
		&inv.Signature,
		&status,
		&inv.ErrorMessage,
		&slot,
		&args,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.Status = domain.InvocationStatus(status)
	if slot > 0 {
		inv.Slot = uint64(slot)
	}
	if len(args) > 0 {
		inv.Args = append(json.RawMessage(nil), args...)
	}
	return &inv, nil
}

var _ domain.InvocationRepository = (*InvocationRepositoryPG)(nil)
