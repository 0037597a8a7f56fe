package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// ownedRow is the shared column layout of roles and tasks.
// Its field set matches models.Role and models.Task so rows convert directly.
type ownedRow struct {
	ID           uuid.UUID
	OwnerUserID  string
	Name         string
	Description  string
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var ownedColumns = []string{"id", "owner_user_id", "name", "description", "display_order", "created_at", "updated_at"}

// GraphNodeSortFields are the sortable fields of role and task list operations.
var GraphNodeSortFields = map[string]string{
	"display_order": "display_order",
	"name":          "name",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
}

// ownedTable implements the user-owned CRUD shared by roles and tasks.
type ownedTable struct {
	table string
	label string
}

func (t ownedTable) create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*ownedRow, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_user_id, name, description, display_order)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, t.table, cols(ownedColumns))

	row, err := scanOwned(q.QueryRow(ctx, query, owner, in.Name, in.Description, in.DisplayOrder))
	if err != nil {
		return nil, apperrors.FromPg("create "+t.label, err)
	}
	return row, nil
}

func (t ownedTable) get(ctx context.Context, id uuid.UUID) (*ownedRow, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, cols(ownedColumns), t.table)
	row, err := scanOwned(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(t.label, id)
		}
		return nil, apperrors.FromPg("get "+t.label, err)
	}
	return row, nil
}

func (t ownedTable) update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*ownedRow, error) {
	if in.IsEmpty() {
		return t.get(ctx, id)
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(t.table)
	assignments := []string{ub.Assign("updated_at", time.Now())}
	if in.Name != nil {
		assignments = append(assignments, ub.Assign("name", *in.Name))
	}
	if in.Description != nil {
		assignments = append(assignments, ub.Assign("description", *in.Description))
	}
	if in.DisplayOrder != nil {
		assignments = append(assignments, ub.Assign("display_order", *in.DisplayOrder))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))
	query, args := ub.Build()
	query += " RETURNING " + cols(ownedColumns)

	row, err := scanOwned(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(t.label, id)
		}
		return nil, apperrors.FromPg("update "+t.label, err)
	}
	return row, nil
}

func (t ownedTable) delete(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.table), id)
	if err != nil {
		return apperrors.FromPg("delete "+t.label, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound(t.label, id)
	}
	return nil
}

func (t ownedTable) list(ctx context.Context, owner string, opts models.ListOptions) ([]*ownedRow, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	opts, err = normalizeList(opts, "display_order", GraphNodeSortFields)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: ownedColumns,
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From(t.table)
			sb.Where(sb.Equal("owner_user_id", owner))
		},
		sortable: GraphNodeSortFields,
		tiebreak: "created_at ASC, id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count "+t.table, err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list "+t.table, err)
	}
	defer rows.Close()

	out := []*ownedRow{}
	for rows.Next() {
		row, err := scanOwned(rows)
		if err != nil {
			return nil, 0, apperrors.FromPg("scan "+t.label, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.FromPg("list "+t.table, err)
	}
	return out, total, nil
}

func (t ownedTable) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, q, t.table, id)
}

func scanOwned(row pgx.Row) (*ownedRow, error) {
	var o ownedRow
	if err := row.Scan(&o.ID, &o.OwnerUserID, &o.Name, &o.Description, &o.DisplayOrder, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
