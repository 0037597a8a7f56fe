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

// HierarchyService manages the System → Department → PracticeGroup tree.
// Every method takes the level it operates on; parentID is nil for systems
// and required for the other two levels.
type HierarchyService interface {
	Create(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, in models.CreateNodeInput) (*models.HierarchyNode, error)
	Get(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (*models.HierarchyNode, error)
	Update(ctx context.Context, level models.HierarchyLevel, id uuid.UUID, in models.UpdateNodeInput) (*models.HierarchyNode, error)
	Delete(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) error
	ListChildren(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, opts models.ListOptions) (*models.Page[*models.HierarchyNode], error)

	// GetTree returns a system with its departments, practice groups and
	// action titles nested, each level in display order.
	GetTree(ctx context.Context, systemID uuid.UUID) (*models.SystemTree, error)
}

type hierarchyService struct {
	repo       repositories.HierarchyRepository
	actionRepo repositories.ActionRepository
	usage      cache.UsageCache
	logger     *zap.Logger
}

// NewHierarchyService creates a new HierarchyService. usage is invalidated
// whenever a delete cascades away link attachments.
func NewHierarchyService(repo repositories.HierarchyRepository, actionRepo repositories.ActionRepository, usage cache.UsageCache, logger *zap.Logger) HierarchyService {
	if usage == nil {
		usage = cache.NoopUsageCache{}
	}
	return &hierarchyService{
		repo:       repo,
		actionRepo: actionRepo,
		usage:      usage,
		logger:     logger.Named("hierarchy-service"),
	}
}

var _ HierarchyService = (*hierarchyService)(nil)

func (s *hierarchyService) Create(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, in models.CreateNodeInput) (*models.HierarchyNode, error) {
	if !level.IsValid() {
		return nil, apperrors.Validation("unknown hierarchy level %q", level)
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	parentLevel := level.Parent()
	switch {
	case parentLevel == "" && parentID != nil:
		return nil, apperrors.Validation("a system has no parent")
	case parentLevel != "" && parentID == nil:
		return nil, apperrors.Validation("%s requires a %s", level, parentLevel)
	case parentLevel != "":
		exists, err := s.repo.Exists(ctx, parentLevel, *parentID)
		if err := requireFound(exists, err, labelFor(parentLevel), *parentID); err != nil {
			return nil, err
		}
	}

	node, err := s.repo.Create(ctx, level, parentID, in)
	if err != nil {
		s.logger.Error("Failed to create hierarchy node",
			zap.String("level", string(level)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Created hierarchy node",
		zap.String("level", string(level)),
		zap.String("id", node.ID.String()),
		zap.String("name", node.Name))
	return node, nil
}

func (s *hierarchyService) Get(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (*models.HierarchyNode, error) {
	if !level.IsValid() {
		return nil, apperrors.Validation("unknown hierarchy level %q", level)
	}
	return s.repo.GetByID(ctx, level, id)
}

func (s *hierarchyService) Update(ctx context.Context, level models.HierarchyLevel, id uuid.UUID, in models.UpdateNodeInput) (*models.HierarchyNode, error) {
	if !level.IsValid() {
		return nil, apperrors.Validation("unknown hierarchy level %q", level)
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, level, id, in)
}

// Delete removes the node and, through cascades, every descendant and its actions.
func (s *hierarchyService) Delete(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) error {
	if !level.IsValid() {
		return apperrors.Validation("unknown hierarchy level %q", level)
	}
	if err := s.repo.Delete(ctx, level, id); err != nil {
		return err
	}
	s.usage.Invalidate(ctx)

	s.logger.Info("Deleted hierarchy node",
		zap.String("level", string(level)),
		zap.String("id", id.String()))
	return nil
}

func (s *hierarchyService) ListChildren(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, opts models.ListOptions) (*models.Page[*models.HierarchyNode], error) {
	if !level.IsValid() {
		return nil, apperrors.Validation("unknown hierarchy level %q", level)
	}
	if parentLevel := level.Parent(); parentLevel != "" {
		if parentID == nil {
			return nil, apperrors.Validation("%s requires a %s", level, parentLevel)
		}
		exists, err := s.repo.Exists(ctx, parentLevel, *parentID)
		if err := requireFound(exists, err, labelFor(parentLevel), *parentID); err != nil {
			return nil, err
		}
	}

	nodes, total, err := s.repo.ListChildren(ctx, level, parentID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(nodes, total, opts.Bounded()), nil
}

func (s *hierarchyService) GetTree(ctx context.Context, systemID uuid.UUID) (*models.SystemTree, error) {
	system, err := s.repo.GetByID(ctx, models.LevelSystem, systemID)
	if err != nil {
		return nil, err
	}

	departments, err := s.repo.ListByParents(ctx, models.LevelDepartment, []uuid.UUID{systemID})
	if err != nil {
		return nil, err
	}
	deptIDs := make([]uuid.UUID, len(departments))
	for i, d := range departments {
		deptIDs[i] = d.ID
	}

	groups, err := s.repo.ListByParents(ctx, models.LevelPracticeGroup, deptIDs)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]uuid.UUID, len(groups))
	for i, g := range groups {
		groupIDs[i] = g.ID
	}

	systemActions, err := s.actionRepo.ListByParents(ctx, models.ActionParentSystem, []uuid.UUID{systemID})
	if err != nil {
		return nil, err
	}
	groupActions, err := s.actionRepo.ListByParents(ctx, models.ActionParentPracticeGroup, groupIDs)
	if err != nil {
		return nil, err
	}

	actionsByGroup := make(map[uuid.UUID][]*models.ActionSummary)
	for _, a := range groupActions {
		actionsByGroup[*a.PracticeGroupID] = append(actionsByGroup[*a.PracticeGroupID], summarize(a))
	}

	groupsByDept := make(map[uuid.UUID][]*models.PracticeGroupTree)
	for _, g := range groups {
		actions := actionsByGroup[g.ID]
		if actions == nil {
			actions = []*models.ActionSummary{}
		}
		groupsByDept[*g.ParentID] = append(groupsByDept[*g.ParentID], &models.PracticeGroupTree{
			HierarchyNode: *g,
			Actions:       actions,
		})
	}

	tree := &models.SystemTree{
		HierarchyNode: *system,
		Actions:       make([]*models.ActionSummary, 0, len(systemActions)),
		Departments:   make([]*models.DepartmentTree, 0, len(departments)),
	}
	for _, a := range systemActions {
		tree.Actions = append(tree.Actions, summarize(a))
	}
	for _, d := range departments {
		pgs := groupsByDept[d.ID]
		if pgs == nil {
			pgs = []*models.PracticeGroupTree{}
		}
		tree.Departments = append(tree.Departments, &models.DepartmentTree{
			HierarchyNode:  *d,
			PracticeGroups: pgs,
		})
	}
	return tree, nil
}

func summarize(a *models.Action) *models.ActionSummary {
	return &models.ActionSummary{ID: a.ID, Title: a.Title, DisplayOrder: a.DisplayOrder}
}

// labelFor returns the human-readable name of a level used in error messages.
func labelFor(level models.HierarchyLevel) string {
	if level == models.LevelPracticeGroup {
		return "practice group"
	}
	return string(level)
}
