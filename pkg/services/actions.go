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

// ActionService manages actions, their screenshot references, and the
// multi-path view of where an action can be reached from.
type ActionService interface {
	Create(ctx context.Context, in models.CreateActionInput) (*models.Action, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Action, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateActionInput) (*models.Action, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByParent(ctx context.Context, kind models.ActionParentKind, parentID uuid.UUID, opts models.ListOptions) (*models.Page[*models.Action], error)

	// GetPaths returns the hierarchy chain, tasks (with their roles) and
	// sequences through which the action is reachable.
	GetPaths(ctx context.Context, id uuid.UUID) (*models.ActionPaths, error)

	AddScreenshot(ctx context.Context, actionID uuid.UUID, in models.AddScreenshotInput) (*models.Screenshot, error)
	ListScreenshots(ctx context.Context, actionID uuid.UUID) ([]*models.Screenshot, error)
	RemoveScreenshot(ctx context.Context, id uuid.UUID) error
}

type actionService struct {
	repo          repositories.ActionRepository
	hierarchyRepo repositories.HierarchyRepository
	navRepo       repositories.NavigationRepository
	sequenceRepo  repositories.SequenceRepository
	usage         cache.UsageCache
	logger        *zap.Logger
}

// NewActionService creates a new ActionService.
func NewActionService(
	repo repositories.ActionRepository,
	hierarchyRepo repositories.HierarchyRepository,
	navRepo repositories.NavigationRepository,
	sequenceRepo repositories.SequenceRepository,
	usage cache.UsageCache,
	logger *zap.Logger,
) ActionService {
	if usage == nil {
		usage = cache.NoopUsageCache{}
	}
	return &actionService{
		repo:          repo,
		hierarchyRepo: hierarchyRepo,
		navRepo:       navRepo,
		sequenceRepo:  sequenceRepo,
		usage:         usage,
		logger:        logger.Named("action-service"),
	}
}

var _ ActionService = (*actionService)(nil)

// Create requires exactly one of SystemID and PracticeGroupID and that the
// named parent exists.
func (s *actionService) Create(ctx context.Context, in models.CreateActionInput) (*models.Action, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	var (
		level    models.HierarchyLevel
		parentID uuid.UUID
	)
	switch {
	case in.SystemID != nil && in.PracticeGroupID != nil:
		return nil, apperrors.Validation("action must have exactly one parent, got both system_id and practice_group_id")
	case in.SystemID != nil:
		level, parentID = models.LevelSystem, *in.SystemID
	case in.PracticeGroupID != nil:
		level, parentID = models.LevelPracticeGroup, *in.PracticeGroupID
	default:
		return nil, apperrors.Validation("action must have exactly one parent: system_id or practice_group_id")
	}

	steps, err := models.NormalizeSteps(in.Steps)
	if err != nil {
		return nil, err
	}
	in.Steps = steps

	exists, err := s.hierarchyRepo.Exists(ctx, level, parentID)
	if err := requireFound(exists, err, labelFor(level), parentID); err != nil {
		return nil, err
	}

	action, err := s.repo.Create(ctx, in, optionalSubject(ctx))
	if err != nil {
		s.logger.Error("Failed to create action",
			zap.String("parent_level", string(level)),
			zap.String("parent_id", parentID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Created action",
		zap.String("action_id", action.ID.String()),
		zap.String("title", action.Title))
	return action, nil
}

func (s *actionService) Get(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update. The hierarchy parent cannot be changed.
func (s *actionService) Update(ctx context.Context, id uuid.UUID, in models.UpdateActionInput) (*models.Action, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	if in.Steps != nil {
		steps, err := models.NormalizeSteps(in.Steps)
		if err != nil {
			return nil, err
		}
		in.Steps = steps
	}
	return s.repo.Update(ctx, id, in)
}

func (s *actionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.usage.Invalidate(ctx)
	s.logger.Info("Deleted action", zap.String("action_id", id.String()))
	return nil
}

func (s *actionService) ListByParent(ctx context.Context, kind models.ActionParentKind, parentID uuid.UUID, opts models.ListOptions) (*models.Page[*models.Action], error) {
	level, err := actionParentLevel(kind)
	if err != nil {
		return nil, err
	}
	exists, err := s.hierarchyRepo.Exists(ctx, level, parentID)
	if err := requireFound(exists, err, labelFor(level), parentID); err != nil {
		return nil, err
	}

	actions, total, err := s.repo.ListByParent(ctx, kind, parentID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(actions, total, opts.Bounded()), nil
}

func (s *actionService) GetPaths(ctx context.Context, id uuid.UUID) (*models.ActionPaths, error) {
	action, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chain, err := s.hierarchyChain(ctx, action)
	if err != nil {
		return nil, err
	}

	tasks, err := s.allTasksForAction(ctx, id)
	if err != nil {
		return nil, err
	}
	taskIDs := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	rolesByTask, err := s.navRepo.RolesForTasks(ctx, taskIDs)
	if err != nil {
		return nil, err
	}

	taskPaths := make([]*models.TaskPath, 0, len(tasks))
	for _, t := range tasks {
		roles := rolesByTask[t.ID]
		if roles == nil {
			roles = []*models.Role{}
		}
		task := t.Task
		taskPaths = append(taskPaths, &models.TaskPath{
			Task:         &task,
			DisplayOrder: t.DisplayOrder,
			Notes:        t.Notes,
			Roles:        roles,
		})
	}

	sequences, err := s.sequenceRepo.ListForAction(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.ActionPaths{
		Action:    action,
		Hierarchy: chain,
		Tasks:     taskPaths,
		Sequences: sequences,
	}, nil
}

// allTasksForAction reads every task page; an action may sit in more tasks
// than one list request returns.
func (s *actionService) allTasksForAction(ctx context.Context, id uuid.UUID) ([]*models.TaskForAction, error) {
	var out []*models.TaskForAction
	opts := models.ListOptions{Limit: models.MaxListLimit}
	for {
		page, total, err := s.navRepo.TasksForAction(ctx, id, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			return out, nil
		}
		opts.Offset += len(page)
	}
}

// hierarchyChain resolves the action's ancestors, root first.
func (s *actionService) hierarchyChain(ctx context.Context, action *models.Action) ([]*models.HierarchyNode, error) {
	if action.SystemID != nil {
		system, err := s.hierarchyRepo.GetByID(ctx, models.LevelSystem, *action.SystemID)
		if err != nil {
			return nil, err
		}
		return []*models.HierarchyNode{system}, nil
	}

	group, err := s.hierarchyRepo.GetByID(ctx, models.LevelPracticeGroup, *action.PracticeGroupID)
	if err != nil {
		return nil, err
	}
	dept, err := s.hierarchyRepo.GetByID(ctx, models.LevelDepartment, *group.ParentID)
	if err != nil {
		return nil, err
	}
	system, err := s.hierarchyRepo.GetByID(ctx, models.LevelSystem, *dept.ParentID)
	if err != nil {
		return nil, err
	}
	return []*models.HierarchyNode{system, dept, group}, nil
}

func (s *actionService) AddScreenshot(ctx context.Context, actionID uuid.UUID, in models.AddScreenshotInput) (*models.Screenshot, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	exists, err := s.repo.Exists(ctx, actionID)
	if err := requireFound(exists, err, "action", actionID); err != nil {
		return nil, err
	}
	return s.repo.AddScreenshot(ctx, actionID, in)
}

func (s *actionService) ListScreenshots(ctx context.Context, actionID uuid.UUID) ([]*models.Screenshot, error) {
	exists, err := s.repo.Exists(ctx, actionID)
	if err := requireFound(exists, err, "action", actionID); err != nil {
		return nil, err
	}
	return s.repo.ListScreenshots(ctx, actionID)
}

func (s *actionService) RemoveScreenshot(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteScreenshot(ctx, id)
}

func actionParentLevel(kind models.ActionParentKind) (models.HierarchyLevel, error) {
	switch kind {
	case models.ActionParentSystem:
		return models.LevelSystem, nil
	case models.ActionParentPracticeGroup:
		return models.LevelPracticeGroup, nil
	default:
		return "", apperrors.Validation("unknown action parent kind %q", kind)
	}
}
