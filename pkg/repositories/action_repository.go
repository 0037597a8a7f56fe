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

// ActionRepository provides data access for actions and their screenshot references.
type ActionRepository interface {
	Create(ctx context.Context, in models.CreateActionInput, createdBy string) (*models.Action, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Action, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateActionInput) (*models.Action, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByParent(ctx context.Context, kind models.ActionParentKind, parentID uuid.UUID, opts models.ListOptions) ([]*models.Action, int, error)
	ListByParents(ctx context.Context, kind models.ActionParentKind, parentIDs []uuid.UUID) ([]*models.Action, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	AddScreenshot(ctx context.Context, actionID uuid.UUID, in models.AddScreenshotInput) (*models.Screenshot, error)
	ListScreenshots(ctx context.Context, actionID uuid.UUID) ([]*models.Screenshot, error)
	DeleteScreenshot(ctx context.Context, id uuid.UUID) error
}

type actionRepository struct{}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository() ActionRepository {
	return &actionRepository{}
}

var _ ActionRepository = (*actionRepository)(nil)

var actionColumns = []string{
	"id", "system_id", "practice_group_id", "title", "description", "steps",
	"display_order", "created_by", "created_at", "updated_at",
}

// ActionSortFields are the sortable fields of action list operations.
var ActionSortFields = map[string]string{
	"display_order": "display_order",
	"title":         "title",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
}

func actionParentColumn(kind models.ActionParentKind) (string, error) {
	switch kind {
	case models.ActionParentSystem:
		return "system_id", nil
	case models.ActionParentPracticeGroup:
		return "practice_group_id", nil
	default:
		return "", apperrors.Validation("unknown action parent kind %q", kind)
	}
}

// ============================================================================
// CRUD Operations
// ============================================================================

// Create inserts an action. in.Steps must already be normalized.
func (r *actionRepository) Create(ctx context.Context, in models.CreateActionInput, createdBy string) (*models.Action, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO actions (
			system_id, practice_group_id, title, description, steps,
			display_order, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + cols(actionColumns)

	action, err := scanAction(q.QueryRow(ctx, query,
		in.SystemID,
		in.PracticeGroupID,
		in.Title,
		in.Description,
		in.Steps,
		in.DisplayOrder,
		createdBy,
	))
	if err != nil {
		return nil, apperrors.FromPg("create action", err)
	}
	return action, nil
}

func (r *actionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + cols(actionColumns) + ` FROM actions WHERE id = $1`
	action, err := scanAction(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("action", id)
		}
		return nil, apperrors.FromPg("get action", err)
	}
	return action, nil
}

// Update applies a partial update. in.Steps, when set, must already be normalized.
func (r *actionRepository) Update(ctx context.Context, id uuid.UUID, in models.UpdateActionInput) (*models.Action, error) {
	if in.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("actions")
	assignments := []string{ub.Assign("updated_at", time.Now())}
	if in.Title != nil {
		assignments = append(assignments, ub.Assign("title", *in.Title))
	}
	if in.Description != nil {
		assignments = append(assignments, ub.Assign("description", *in.Description))
	}
	if in.Steps != nil {
		assignments = append(assignments, ub.Assign("steps", in.Steps))
	}
	if in.DisplayOrder != nil {
		assignments = append(assignments, ub.Assign("display_order", *in.DisplayOrder))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))
	query, args := ub.Build()
	query += " RETURNING " + cols(actionColumns)

	action, err := scanAction(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("action", id)
		}
		return nil, apperrors.FromPg("update action", err)
	}
	return action, nil
}

// Delete removes the action. Task, sequence, link and screenshot rows cascade.
func (r *actionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM actions WHERE id = $1`, id)
	if err != nil {
		return apperrors.FromPg("delete action", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("action", id)
	}
	return nil
}

func (r *actionRepository) ListByParent(ctx context.Context, kind models.ActionParentKind, parentID uuid.UUID, opts models.ListOptions) ([]*models.Action, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	column, err := actionParentColumn(kind)
	if err != nil {
		return nil, 0, err
	}
	opts, err = normalizeList(opts, "display_order", ActionSortFields)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: actionColumns,
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("actions")
			sb.Where(sb.Equal(column, parentID))
		},
		sortable: ActionSortFields,
		tiebreak: "created_at ASC, id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count actions", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list actions", err)
	}
	actions, err := collectActions(rows)
	if err != nil {
		return nil, 0, apperrors.FromPg("list actions", err)
	}
	return actions, total, nil
}

// ListByParents returns the actions of every parent in parentIDs ordered by display order.
func (r *actionRepository) ListByParents(ctx context.Context, kind models.ActionParentKind, parentIDs []uuid.UUID) ([]*models.Action, error) {
	if len(parentIDs) == 0 {
		return []*models.Action{}, nil
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}
	column, err := actionParentColumn(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM actions
		WHERE %s = ANY($1)
		ORDER BY display_order, created_at, id`, cols(actionColumns), column)

	rows, err := q.Query(ctx, query, parentIDs)
	if err != nil {
		return nil, apperrors.FromPg("list actions", err)
	}
	actions, err := collectActions(rows)
	if err != nil {
		return nil, apperrors.FromPg("list actions", err)
	}
	return actions, nil
}

func (r *actionRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, q, "actions", id)
}

// ============================================================================
// Screenshots
// ============================================================================

func (r *actionRepository) AddScreenshot(ctx context.Context, actionID uuid.UUID, in models.AddScreenshotInput) (*models.Screenshot, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO action_screenshots (action_id, screenshot_ref, caption)
		VALUES ($1, $2, $3)
		RETURNING id, action_id, screenshot_ref, caption, created_at`

	var s models.Screenshot
	err = q.QueryRow(ctx, query, actionID, in.Ref, in.Caption).
		Scan(&s.ID, &s.ActionID, &s.Ref, &s.Caption, &s.CreatedAt)
	if err != nil {
		return nil, apperrors.FromPg("add screenshot", err)
	}
	return &s, nil
}

func (r *actionRepository) ListScreenshots(ctx context.Context, actionID uuid.UUID) ([]*models.Screenshot, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, action_id, screenshot_ref, caption, created_at
		FROM action_screenshots
		WHERE action_id = $1
		ORDER BY created_at, id`

	rows, err := q.Query(ctx, query, actionID)
	if err != nil {
		return nil, apperrors.FromPg("list screenshots", err)
	}
	defer rows.Close()

	shots := []*models.Screenshot{}
	for rows.Next() {
		var s models.Screenshot
		if err := rows.Scan(&s.ID, &s.ActionID, &s.Ref, &s.Caption, &s.CreatedAt); err != nil {
			return nil, apperrors.FromPg("scan screenshot", err)
		}
		shots = append(shots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.FromPg("list screenshots", err)
	}
	return shots, nil
}

func (r *actionRepository) DeleteScreenshot(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM action_screenshots WHERE id = $1`, id)
	if err != nil {
		return apperrors.FromPg("delete screenshot", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("screenshot", id)
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanAction(row pgx.Row) (*models.Action, error) {
	var a models.Action
	err := row.Scan(
		&a.ID, &a.SystemID, &a.PracticeGroupID, &a.Title, &a.Description, &a.Steps,
		&a.DisplayOrder, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectActions(rows pgx.Rows) ([]*models.Action, error) {
	defer rows.Close()
	actions := []*models.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}
