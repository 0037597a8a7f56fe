package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// NavigationRepository provides data access for the Role ↔ Task ↔ Action
// junctions. Junction rows are insert-only: linking an existing pair is a
// conflict, never an upsert.
type NavigationRepository interface {
	LinkTaskToRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error)
	UnlinkTaskFromRole(ctx context.Context, roleID, taskID uuid.UUID) error
	ReorderTaskInRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error)
	TasksForRole(ctx context.Context, roleID uuid.UUID, opts models.ListOptions) ([]*models.TaskInRole, int, error)
	RolesForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) ([]*models.RoleForTask, int, error)
	RolesForTasks(ctx context.Context, taskIDs []uuid.UUID) (map[uuid.UUID][]*models.Role, error)

	LinkActionToTask(ctx context.Context, taskID uuid.UUID, in models.LinkActionInput) (*models.TaskAction, error)
	UnlinkActionFromTask(ctx context.Context, taskID, actionID uuid.UUID) error
	UpdateTaskAction(ctx context.Context, taskID, actionID uuid.UUID, in models.UpdateTaskActionInput) (*models.TaskAction, error)
	ActionsForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) ([]*models.ActionInTask, int, error)
	TasksForAction(ctx context.Context, actionID uuid.UUID, opts models.ListOptions) ([]*models.TaskForAction, int, error)
}

type navigationRepository struct{}

// NewNavigationRepository creates a new NavigationRepository.
func NewNavigationRepository() NavigationRepository {
	return &navigationRepository{}
}

var _ NavigationRepository = (*navigationRepository)(nil)

var navigationConflicts = map[string]string{
	"role_tasks_role_task_key":     "task is already linked to this role",
	"task_actions_task_action_key": "action is already linked to this task",
}

var roleTaskColumns = []string{"id", "role_id", "task_id", "display_order", "created_at"}

var taskActionColumns = []string{"id", "task_id", "action_id", "display_order", "notes", "created_at"}

// junctionSortable returns the sort fields of a junction traversal.
// display_order refers to the junction row, the others to the joined entity.
func junctionSortable(junction, entity, nameColumn string) map[string]string {
	return map[string]string{
		"display_order": junction + ".display_order",
		nameColumn:      entity + "." + nameColumn,
		"created_at":    entity + ".created_at",
	}
}

// ============================================================================
// Role ↔ Task
// ============================================================================

func (r *navigationRepository) LinkTaskToRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO role_tasks (role_id, task_id, display_order)
		VALUES ($1, $2, $3)
		RETURNING ` + cols(roleTaskColumns)

	rt, err := scanRoleTask(q.QueryRow(ctx, query, roleID, taskID, displayOrder))
	if err != nil {
		return nil, translate("link task to role", err, navigationConflicts)
	}
	return rt, nil
}

func (r *navigationRepository) UnlinkTaskFromRole(ctx context.Context, roleID, taskID uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM role_tasks WHERE role_id = $1 AND task_id = $2`, roleID, taskID)
	if err != nil {
		return apperrors.FromPg("unlink task from role", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("role task", taskID)
	}
	return nil
}

// ReorderTaskInRole changes the position of one task within one role.
// Siblings are not renumbered and equal positions are allowed.
func (r *navigationRepository) ReorderTaskInRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE role_tasks SET display_order = $3
		WHERE role_id = $1 AND task_id = $2
		RETURNING ` + cols(roleTaskColumns)

	rt, err := scanRoleTask(q.QueryRow(ctx, query, roleID, taskID, displayOrder))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("role task", taskID)
		}
		return nil, apperrors.FromPg("reorder task in role", err)
	}
	return rt, nil
}

func (r *navigationRepository) TasksForRole(ctx context.Context, roleID uuid.UUID, opts models.ListOptions) ([]*models.TaskInRole, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	sortable := junctionSortable("rt", "t", "name")
	opts, err = normalizeList(opts, "display_order", sortable)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: append(qualify("t", ownedColumns), "rt.display_order", "rt.id"),
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("role_tasks rt")
			sb.Join("tasks t", "t.id = rt.task_id")
			sb.Where(sb.Equal("rt.role_id", roleID))
		},
		sortable: sortable,
		tiebreak: "rt.created_at ASC, rt.id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count tasks for role", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list tasks for role", err)
	}
	defer rows.Close()

	out := []*models.TaskInRole{}
	for rows.Next() {
		var o ownedRow
		var item models.TaskInRole
		err := rows.Scan(&o.ID, &o.OwnerUserID, &o.Name, &o.Description, &o.DisplayOrder, &o.CreatedAt, &o.UpdatedAt,
			&item.DisplayOrder, &item.RoleTaskID)
		if err != nil {
			return nil, 0, apperrors.FromPg("scan task for role", err)
		}
		item.Task = models.Task(o)
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.FromPg("list tasks for role", err)
	}
	return out, total, nil
}

func (r *navigationRepository) RolesForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) ([]*models.RoleForTask, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	sortable := junctionSortable("rt", "r", "name")
	opts, err = normalizeList(opts, "display_order", sortable)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: append(qualify("r", ownedColumns), "rt.display_order", "rt.id"),
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("role_tasks rt")
			sb.Join("roles r", "r.id = rt.role_id")
			sb.Where(sb.Equal("rt.task_id", taskID))
		},
		sortable: sortable,
		tiebreak: "rt.created_at ASC, rt.id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count roles for task", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list roles for task", err)
	}
	defer rows.Close()

	out := []*models.RoleForTask{}
	for rows.Next() {
		var o ownedRow
		var item models.RoleForTask
		err := rows.Scan(&o.ID, &o.OwnerUserID, &o.Name, &o.Description, &o.DisplayOrder, &o.CreatedAt, &o.UpdatedAt,
			&item.DisplayOrder, &item.RoleTaskID)
		if err != nil {
			return nil, 0, apperrors.FromPg("scan role for task", err)
		}
		item.Role = models.Role(o)
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.FromPg("list roles for task", err)
	}
	return out, total, nil
}

// RolesForTasks returns the roles containing each task, keyed by task id.
func (r *navigationRepository) RolesForTasks(ctx context.Context, taskIDs []uuid.UUID) (map[uuid.UUID][]*models.Role, error) {
	out := make(map[uuid.UUID][]*models.Role, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT rt.task_id, ` + cols(qualify("r", ownedColumns)) + `
		FROM role_tasks rt
		JOIN roles r ON r.id = rt.role_id
		WHERE rt.task_id = ANY($1)
		ORDER BY rt.task_id, rt.display_order, r.name`

	rows, err := q.Query(ctx, query, taskIDs)
	if err != nil {
		return nil, apperrors.FromPg("list roles for tasks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID uuid.UUID
		var o ownedRow
		if err := rows.Scan(&taskID, &o.ID, &o.OwnerUserID, &o.Name, &o.Description, &o.DisplayOrder, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, apperrors.FromPg("scan role for task", err)
		}
		role := models.Role(o)
		out[taskID] = append(out[taskID], &role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.FromPg("list roles for tasks", err)
	}
	return out, nil
}

// ============================================================================
// Task ↔ Action
// ============================================================================

func (r *navigationRepository) LinkActionToTask(ctx context.Context, taskID uuid.UUID, in models.LinkActionInput) (*models.TaskAction, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO task_actions (task_id, action_id, display_order, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + cols(taskActionColumns)

	ta, err := scanTaskAction(q.QueryRow(ctx, query, taskID, in.ActionID, in.DisplayOrder, in.Notes))
	if err != nil {
		return nil, translate("link action to task", err, navigationConflicts)
	}
	return ta, nil
}

func (r *navigationRepository) UnlinkActionFromTask(ctx context.Context, taskID, actionID uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM task_actions WHERE task_id = $1 AND action_id = $2`, taskID, actionID)
	if err != nil {
		return apperrors.FromPg("unlink action from task", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("task action", actionID)
	}
	return nil
}

// UpdateTaskAction changes the order or note of one action within one task.
// The same action keeps its own order and note in every other task.
func (r *navigationRepository) UpdateTaskAction(ctx context.Context, taskID, actionID uuid.UUID, in models.UpdateTaskActionInput) (*models.TaskAction, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	var query string
	var args []any
	if in.IsEmpty() {
		query = `SELECT ` + cols(taskActionColumns) + ` FROM task_actions WHERE task_id = $1 AND action_id = $2`
		args = []any{taskID, actionID}
	} else {
		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("task_actions")
		var assignments []string
		if in.DisplayOrder != nil {
			assignments = append(assignments, ub.Assign("display_order", *in.DisplayOrder))
		}
		if in.Notes != nil {
			assignments = append(assignments, ub.Assign("notes", *in.Notes))
		}
		ub.Set(assignments...)
		ub.Where(ub.Equal("task_id", taskID), ub.Equal("action_id", actionID))
		query, args = ub.Build()
		query += " RETURNING " + cols(taskActionColumns)
	}

	ta, err := scanTaskAction(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("task action", actionID)
		}
		return nil, apperrors.FromPg("update task action", err)
	}
	return ta, nil
}

func (r *navigationRepository) ActionsForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) ([]*models.ActionInTask, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	sortable := junctionSortable("ta", "a", "title")
	opts, err = normalizeList(opts, "display_order", sortable)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: append(qualify("a", actionColumns), "ta.display_order", "ta.notes", "ta.id"),
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("task_actions ta")
			sb.Join("actions a", "a.id = ta.action_id")
			sb.Where(sb.Equal("ta.task_id", taskID))
		},
		sortable: sortable,
		tiebreak: "ta.created_at ASC, ta.id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count actions for task", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list actions for task", err)
	}
	defer rows.Close()

	out := []*models.ActionInTask{}
	for rows.Next() {
		var item models.ActionInTask
		a := &item.Action
		err := rows.Scan(
			&a.ID, &a.SystemID, &a.PracticeGroupID, &a.Title, &a.Description, &a.Steps,
			&a.DisplayOrder, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
			&item.DisplayOrder, &item.Notes, &item.TaskActionID,
		)
		if err != nil {
			return nil, 0, apperrors.FromPg("scan action for task", err)
		}
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.FromPg("list actions for task", err)
	}
	return out, total, nil
}

func (r *navigationRepository) TasksForAction(ctx context.Context, actionID uuid.UUID, opts models.ListOptions) ([]*models.TaskForAction, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	sortable := junctionSortable("ta", "t", "name")
	opts, err = normalizeList(opts, "display_order", sortable)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: append(qualify("t", ownedColumns), "ta.display_order", "ta.notes", "ta.id"),
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("task_actions ta")
			sb.Join("tasks t", "t.id = ta.task_id")
			sb.Where(sb.Equal("ta.action_id", actionID))
		},
		sortable: sortable,
		tiebreak: "ta.created_at ASC, ta.id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count tasks for action", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list tasks for action", err)
	}
	defer rows.Close()

	out := []*models.TaskForAction{}
	for rows.Next() {
		var o ownedRow
		var item models.TaskForAction
		err := rows.Scan(&o.ID, &o.OwnerUserID, &o.Name, &o.Description, &o.DisplayOrder, &o.CreatedAt, &o.UpdatedAt,
			&item.DisplayOrder, &item.Notes, &item.TaskActionID)
		if err != nil {
			return nil, 0, apperrors.FromPg("scan task for action", err)
		}
		item.Task = models.Task(o)
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.FromPg("list tasks for action", err)
	}
	return out, total, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanRoleTask(row pgx.Row) (*models.RoleTask, error) {
	var rt models.RoleTask
	if err := row.Scan(&rt.ID, &rt.RoleID, &rt.TaskID, &rt.DisplayOrder, &rt.CreatedAt); err != nil {
		return nil, err
	}
	return &rt, nil
}

func scanTaskAction(row pgx.Row) (*models.TaskAction, error) {
	var ta models.TaskAction
	if err := row.Scan(&ta.ID, &ta.TaskID, &ta.ActionID, &ta.DisplayOrder, &ta.Notes, &ta.CreatedAt); err != nil {
		return nil, err
	}
	return &ta, nil
}
