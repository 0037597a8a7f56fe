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

// HierarchyRepository provides data access for the System → Department →
// PracticeGroup tree. The three levels share one shape, so every method takes
// the level it operates on.
type HierarchyRepository interface {
	Create(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, in models.CreateNodeInput) (*models.HierarchyNode, error)
	GetByID(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (*models.HierarchyNode, error)
	Update(ctx context.Context, level models.HierarchyLevel, id uuid.UUID, in models.UpdateNodeInput) (*models.HierarchyNode, error)
	Delete(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) error
	ListChildren(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, opts models.ListOptions) ([]*models.HierarchyNode, int, error)
	ListByParents(ctx context.Context, level models.HierarchyLevel, parentIDs []uuid.UUID) ([]*models.HierarchyNode, error)
	Exists(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (bool, error)
}

type hierarchyRepository struct{}

// NewHierarchyRepository creates a new HierarchyRepository.
func NewHierarchyRepository() HierarchyRepository {
	return &hierarchyRepository{}
}

var _ HierarchyRepository = (*hierarchyRepository)(nil)

type levelTable struct {
	table        string
	parentColumn string // empty for systems
	label        string
}

var levelTables = map[models.HierarchyLevel]levelTable{
	models.LevelSystem:        {table: "systems", label: "system"},
	models.LevelDepartment:    {table: "departments", parentColumn: "system_id", label: "department"},
	models.LevelPracticeGroup: {table: "practice_groups", parentColumn: "department_id", label: "practice group"},
}

// NodeSortFields are the sortable fields of hierarchy list operations.
var NodeSortFields = map[string]string{
	"display_order": "display_order",
	"name":          "name",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
}

func tableFor(level models.HierarchyLevel) (levelTable, error) {
	t, ok := levelTables[level]
	if !ok {
		return levelTable{}, apperrors.Validation("unknown hierarchy level %q", level)
	}
	return t, nil
}

// nodeColumns returns the select list for a level, aliasing the parent column
// so every level scans the same way.
func nodeColumns(t levelTable) []string {
	parent := "NULL::uuid"
	if t.parentColumn != "" {
		parent = t.parentColumn
	}
	return []string{"id", parent, "name", "description", "display_order", "created_at", "updated_at"}
}

func (r *hierarchyRepository) Create(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, in models.CreateNodeInput) (*models.HierarchyNode, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}
	t, err := tableFor(level)
	if err != nil {
		return nil, err
	}
	if (t.parentColumn == "") != (parentID == nil) {
		return nil, apperrors.Validation("%s parent mismatch", t.label)
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(t.table)
	if t.parentColumn != "" {
		ib.Cols(t.parentColumn, "name", "description", "display_order")
		ib.Values(*parentID, in.Name, in.Description, in.DisplayOrder)
	} else {
		ib.Cols("name", "description", "display_order")
		ib.Values(in.Name, in.Description, in.DisplayOrder)
	}
	query, args := ib.Build()
	query += " RETURNING " + cols(nodeColumns(t))

	node, err := scanNode(q.QueryRow(ctx, query, args...), level)
	if err != nil {
		return nil, apperrors.FromPg("create "+t.label, err)
	}
	return node, nil
}

func (r *hierarchyRepository) GetByID(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (*models.HierarchyNode, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}
	t, err := tableFor(level)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, cols(nodeColumns(t)), t.table)
	node, err := scanNode(q.QueryRow(ctx, query, id), level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(t.label, id)
		}
		return nil, apperrors.FromPg("get "+t.label, err)
	}
	return node, nil
}

func (r *hierarchyRepository) Update(ctx context.Context, level models.HierarchyLevel, id uuid.UUID, in models.UpdateNodeInput) (*models.HierarchyNode, error) {
	if in.IsEmpty() {
		return r.GetByID(ctx, level, id)
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}
	t, err := tableFor(level)
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
	query += " RETURNING " + cols(nodeColumns(t))

	node, err := scanNode(q.QueryRow(ctx, query, args...), level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(t.label, id)
		}
		return nil, apperrors.FromPg("update "+t.label, err)
	}
	return node, nil
}

// Delete removes the node. Foreign keys cascade through every descendant
// level, their actions and every junction row referencing them.
func (r *hierarchyRepository) Delete(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}
	t, err := tableFor(level)
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

func (r *hierarchyRepository) ListChildren(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, opts models.ListOptions) ([]*models.HierarchyNode, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	t, err := tableFor(level)
	if err != nil {
		return nil, 0, err
	}
	opts, err = normalizeList(opts, "display_order", NodeSortFields)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: nodeColumns(t),
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From(t.table)
			if t.parentColumn != "" && parentID != nil {
				sb.Where(sb.Equal(t.parentColumn, *parentID))
			}
		},
		sortable: NodeSortFields,
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
	nodes, err := collectNodes(rows, level)
	if err != nil {
		return nil, 0, apperrors.FromPg("list "+t.table, err)
	}
	return nodes, total, nil
}

// ListByParents returns every node of level whose parent is in parentIDs,
// ordered by parent then display order. Used to assemble trees in one query per level.
func (r *hierarchyRepository) ListByParents(ctx context.Context, level models.HierarchyLevel, parentIDs []uuid.UUID) ([]*models.HierarchyNode, error) {
	if len(parentIDs) == 0 {
		return []*models.HierarchyNode{}, nil
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}
	t, err := tableFor(level)
	if err != nil {
		return nil, err
	}
	if t.parentColumn == "" {
		return nil, apperrors.Validation("%s has no parent", t.label)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = ANY($1)
		ORDER BY %s, display_order, created_at, id`,
		cols(nodeColumns(t)), t.table, t.parentColumn, t.parentColumn)

	rows, err := q.Query(ctx, query, parentIDs)
	if err != nil {
		return nil, apperrors.FromPg("list "+t.table, err)
	}
	nodes, err := collectNodes(rows, level)
	if err != nil {
		return nil, apperrors.FromPg("list "+t.table, err)
	}
	return nodes, nil
}

func (r *hierarchyRepository) Exists(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}
	t, err := tableFor(level)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, q, t.table, id)
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanNode(row pgx.Row, level models.HierarchyLevel) (*models.HierarchyNode, error) {
	var n models.HierarchyNode
	if err := row.Scan(&n.ID, &n.ParentID, &n.Name, &n.Description, &n.DisplayOrder, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Level = level
	return &n, nil
}

func collectNodes(rows pgx.Rows, level models.HierarchyLevel) ([]*models.HierarchyNode, error) {
	defer rows.Close()
	nodes := []*models.HierarchyNode{}
	for rows.Next() {
		n, err := scanNode(rows, level)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}
