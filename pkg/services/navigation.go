package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/cache"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/repositories"
)

// NavigationService manages roles, tasks and the ordered Role ↔ Task ↔ Action graph.
type NavigationService interface {
	CreateRole(ctx context.Context, in models.CreateGraphNodeInput) (*models.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	// ListRoles lists the roles owned by the caller.
	ListRoles(ctx context.Context, opts models.ListOptions) (*models.Page[*models.Role], error)

	CreateTask(ctx context.Context, in models.CreateGraphNodeInput) (*models.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	// ListTasks lists the tasks owned by the caller.
	ListTasks(ctx context.Context, opts models.ListOptions) (*models.Page[*models.Task], error)

	LinkTaskToRole(ctx context.Context, roleID uuid.UUID, in models.LinkTaskInput) (*models.RoleTask, error)
	// LinkTasksToRole links every task in one transaction; any failure links none.
	LinkTasksToRole(ctx context.Context, roleID uuid.UUID, in []models.LinkTaskInput) ([]*models.RoleTask, error)
	UnlinkTaskFromRole(ctx context.Context, roleID, taskID uuid.UUID) error
	ReorderTaskInRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error)
	TasksForRole(ctx context.Context, roleID uuid.UUID, opts models.ListOptions) (*models.Page[*models.TaskInRole], error)
	RolesForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) (*models.Page[*models.RoleForTask], error)

	LinkActionToTask(ctx context.Context, taskID uuid.UUID, in models.LinkActionInput) (*models.TaskAction, error)
	// LinkActionsToTask links every action in one transaction; any failure links none.
	LinkActionsToTask(ctx context.Context, taskID uuid.UUID, in []models.LinkActionInput) ([]*models.TaskAction, error)
	UnlinkActionFromTask(ctx context.Context, taskID, actionID uuid.UUID) error
	UpdateTaskAction(ctx context.Context, taskID, actionID uuid.UUID, in models.UpdateTaskActionInput) (*models.TaskAction, error)
	ActionsForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) (*models.Page[*models.ActionInTask], error)
	TasksForAction(ctx context.Context, actionID uuid.UUID, opts models.ListOptions) (*models.Page[*models.TaskForAction], error)
}

type navigationService struct {
	roleRepo   repositories.RoleRepository
	taskRepo   repositories.TaskRepository
	actionRepo repositories.ActionRepository
	navRepo    repositories.NavigationRepository
	usage      cache.UsageCache
	withTx     TxFunc
	logger     *zap.Logger
}

// NewNavigationService creates a new NavigationService.
func NewNavigationService(
	roleRepo repositories.RoleRepository,
	taskRepo repositories.TaskRepository,
	actionRepo repositories.ActionRepository,
	navRepo repositories.NavigationRepository,
	usage cache.UsageCache,
	withTx TxFunc,
	logger *zap.Logger,
) NavigationService {
	if usage == nil {
		usage = cache.NoopUsageCache{}
	}
	return &navigationService{
		roleRepo:   roleRepo,
		taskRepo:   taskRepo,
		actionRepo: actionRepo,
		navRepo:    navRepo,
		usage:      usage,
		withTx:     withTx,
		logger:     logger.Named("navigation-service"),
	}
}

var _ NavigationService = (*navigationService)(nil)

// ============================================================================
// Roles
// ============================================================================

func (s *navigationService) CreateRole(ctx context.Context, in models.CreateGraphNodeInput) (*models.Role, error) {
	owner, err := actorSubject(ctx)
	if err != nil {
		return nil, err
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	role, err := s.roleRepo.Create(ctx, owner, in)
	if err != nil {
		s.logger.Error("Failed to create role", zap.Error(err))
		return nil, err
	}
	s.logger.Info("Created role",
		zap.String("role_id", role.ID.String()),
		zap.String("name", role.Name))
	return role, nil
}

func (s *navigationService) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	return s.roleRepo.GetByID(ctx, id)
}

func (s *navigationService) UpdateRole(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Role, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	return s.roleRepo.Update(ctx, id, in)
}

func (s *navigationService) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if err := s.roleRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.usage.Invalidate(ctx)
	s.logger.Info("Deleted role", zap.String("role_id", id.String()))
	return nil
}

func (s *navigationService) ListRoles(ctx context.Context, opts models.ListOptions) (*models.Page[*models.Role], error) {
	owner, err := actorSubject(ctx)
	if err != nil {
		return nil, err
	}
	roles, total, err := s.roleRepo.ListByOwner(ctx, owner, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(roles, total, opts.Bounded()), nil
}

// ============================================================================
// Tasks
// ============================================================================

func (s *navigationService) CreateTask(ctx context.Context, in models.CreateGraphNodeInput) (*models.Task, error) {
	owner, err := actorSubject(ctx)
	if err != nil {
		return nil, err
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Create(ctx, owner, in)
	if err != nil {
		s.logger.Error("Failed to create task", zap.Error(err))
		return nil, err
	}
	s.logger.Info("Created task",
		zap.String("task_id", task.ID.String()),
		zap.String("name", task.Name))
	return task, nil
}

func (s *navigationService) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.taskRepo.GetByID(ctx, id)
}

func (s *navigationService) UpdateTask(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Task, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	return s.taskRepo.Update(ctx, id, in)
}

// DeleteTask removes the task; its role and action memberships cascade.
func (s *navigationService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.usage.Invalidate(ctx)
	s.logger.Info("Deleted task", zap.String("task_id", id.String()))
	return nil
}

func (s *navigationService) ListTasks(ctx context.Context, opts models.ListOptions) (*models.Page[*models.Task], error) {
	owner, err := actorSubject(ctx)
	if err != nil {
		return nil, err
	}
	tasks, total, err := s.taskRepo.ListByOwner(ctx, owner, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(tasks, total, opts.Bounded()), nil
}

// ============================================================================
// Role ↔ Task
// ============================================================================

// LinkTaskToRole checks both ends before writing so a missing role and a
// missing task fail with distinct messages. An existing pair is a conflict.
func (s *navigationService) LinkTaskToRole(ctx context.Context, roleID uuid.UUID, in models.LinkTaskInput) (*models.RoleTask, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, roleID); err != nil {
		return nil, err
	}
	if err := s.requireTask(ctx, in.TaskID); err != nil {
		return nil, err
	}

	rt, err := s.navRepo.LinkTaskToRole(ctx, roleID, in.TaskID, in.DisplayOrder)
	if err != nil {
		s.logger.Warn("Failed to link task to role",
			zap.String("role_id", roleID.String()),
			zap.String("task_id", in.TaskID.String()),
			zap.Error(err))
		return nil, err
	}
	return rt, nil
}

func (s *navigationService) LinkTasksToRole(ctx context.Context, roleID uuid.UUID, in []models.LinkTaskInput) ([]*models.RoleTask, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("at least one task is required")
	}

	out := make([]*models.RoleTask, 0, len(in))
	err := s.withTx(ctx, func(ctx context.Context) error {
		for _, item := range in {
			rt, err := s.LinkTaskToRole(ctx, roleID, item)
			if err != nil {
				return err
			}
			out = append(out, rt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Linked tasks to role",
		zap.String("role_id", roleID.String()),
		zap.Int("count", len(out)))
	return out, nil
}

// UnlinkTaskFromRole reports a missing role or task before a missing pair.
func (s *navigationService) UnlinkTaskFromRole(ctx context.Context, roleID, taskID uuid.UUID) error {
	if err := s.requireRoleTask(ctx, roleID, taskID); err != nil {
		return err
	}
	return s.navRepo.UnlinkTaskFromRole(ctx, roleID, taskID)
}

// ReorderTaskInRole updates only the given row; siblings keep their positions.
func (s *navigationService) ReorderTaskInRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error) {
	if err := models.ValidateOrder("display_order", displayOrder); err != nil {
		return nil, err
	}
	if err := s.requireRoleTask(ctx, roleID, taskID); err != nil {
		return nil, err
	}
	return s.navRepo.ReorderTaskInRole(ctx, roleID, taskID, displayOrder)
}

func (s *navigationService) TasksForRole(ctx context.Context, roleID uuid.UUID, opts models.ListOptions) (*models.Page[*models.TaskInRole], error) {
	if err := s.requireRole(ctx, roleID); err != nil {
		return nil, err
	}
	tasks, total, err := s.navRepo.TasksForRole(ctx, roleID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(tasks, total, opts.Bounded()), nil
}

func (s *navigationService) RolesForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) (*models.Page[*models.RoleForTask], error) {
	if err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	roles, total, err := s.navRepo.RolesForTask(ctx, taskID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(roles, total, opts.Bounded()), nil
}

// ============================================================================
// Task ↔ Action
// ============================================================================

func (s *navigationService) LinkActionToTask(ctx context.Context, taskID uuid.UUID, in models.LinkActionInput) (*models.TaskAction, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	exists, err := s.actionRepo.Exists(ctx, in.ActionID)
	if err := requireFound(exists, err, "action", in.ActionID); err != nil {
		return nil, err
	}

	ta, err := s.navRepo.LinkActionToTask(ctx, taskID, in)
	if err != nil {
		s.logger.Warn("Failed to link action to task",
			zap.String("task_id", taskID.String()),
			zap.String("action_id", in.ActionID.String()),
			zap.Error(err))
		return nil, err
	}
	return ta, nil
}

func (s *navigationService) LinkActionsToTask(ctx context.Context, taskID uuid.UUID, in []models.LinkActionInput) ([]*models.TaskAction, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("at least one action is required")
	}

	out := make([]*models.TaskAction, 0, len(in))
	err := s.withTx(ctx, func(ctx context.Context) error {
		for _, item := range in {
			ta, err := s.LinkActionToTask(ctx, taskID, item)
			if err != nil {
				return err
			}
			out = append(out, ta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Linked actions to task",
		zap.String("task_id", taskID.String()),
		zap.Int("count", len(out)))
	return out, nil
}

func (s *navigationService) UnlinkActionFromTask(ctx context.Context, taskID, actionID uuid.UUID) error {
	if err := s.requireTaskAction(ctx, taskID, actionID); err != nil {
		return err
	}
	return s.navRepo.UnlinkActionFromTask(ctx, taskID, actionID)
}

// UpdateTaskAction changes order or note within one task only.
func (s *navigationService) UpdateTaskAction(ctx context.Context, taskID, actionID uuid.UUID, in models.UpdateTaskActionInput) (*models.TaskAction, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if err := s.requireTaskAction(ctx, taskID, actionID); err != nil {
		return nil, err
	}
	return s.navRepo.UpdateTaskAction(ctx, taskID, actionID, in)
}

func (s *navigationService) ActionsForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) (*models.Page[*models.ActionInTask], error) {
	if err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	actions, total, err := s.navRepo.ActionsForTask(ctx, taskID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(actions, total, opts.Bounded()), nil
}

func (s *navigationService) TasksForAction(ctx context.Context, actionID uuid.UUID, opts models.ListOptions) (*models.Page[*models.TaskForAction], error) {
	exists, err := s.actionRepo.Exists(ctx, actionID)
	if err := requireFound(exists, err, "action", actionID); err != nil {
		return nil, err
	}
	tasks, total, err := s.navRepo.TasksForAction(ctx, actionID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(tasks, total, opts.Bounded()), nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func (s *navigationService) requireRole(ctx context.Context, id uuid.UUID) error {
	exists, err := s.roleRepo.Exists(ctx, id)
	return requireFound(exists, err, "role", id)
}

func (s *navigationService) requireTask(ctx context.Context, id uuid.UUID) error {
	exists, err := s.taskRepo.Exists(ctx, id)
	return requireFound(exists, err, "task", id)
}

func (s *navigationService) requireRoleTask(ctx context.Context, roleID, taskID uuid.UUID) error {
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	return s.requireTask(ctx, taskID)
}

func (s *navigationService) requireTaskAction(ctx context.Context, taskID, actionID uuid.UUID) error {
	if err := s.requireTask(ctx, taskID); err != nil {
		return err
	}
	exists, err := s.actionRepo.Exists(ctx, actionID)
	return requireFound(exists, err, "action", actionID)
}
