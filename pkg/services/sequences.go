package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/repositories"
)

// SequenceService manages explicitly ordered workflows of actions.
type SequenceService interface {
	Create(ctx context.Context, practiceGroupID uuid.UUID, in models.CreateSequenceInput) (*models.ActionSequence, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ActionSequence, error)
	// GetWithActions returns the sequence and its steps by ascending order number.
	GetWithActions(ctx context.Context, id uuid.UUID) (*models.SequenceWithActions, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateSequenceInput) (*models.ActionSequence, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, practiceGroupID uuid.UUID, opts models.ListOptions) (*models.Page[*models.ActionSequence], error)

	AddAction(ctx context.Context, sequenceID uuid.UUID, in models.AddSequenceActionInput) (*models.SequenceAction, error)
	UpdateSequenceAction(ctx context.Context, id uuid.UUID, in models.UpdateSequenceActionInput) (*models.SequenceAction, error)
	RemoveSequenceAction(ctx context.Context, id uuid.UUID) error
}

type sequenceService struct {
	repo          repositories.SequenceRepository
	hierarchyRepo repositories.HierarchyRepository
	actionRepo    repositories.ActionRepository
	logger        *zap.Logger
}

// NewSequenceService creates a new SequenceService.
func NewSequenceService(
	repo repositories.SequenceRepository,
	hierarchyRepo repositories.HierarchyRepository,
	actionRepo repositories.ActionRepository,
	logger *zap.Logger,
) SequenceService {
	return &sequenceService{
		repo:          repo,
		hierarchyRepo: hierarchyRepo,
		actionRepo:    actionRepo,
		logger:        logger.Named("sequence-service"),
	}
}

var _ SequenceService = (*sequenceService)(nil)

func (s *sequenceService) Create(ctx context.Context, practiceGroupID uuid.UUID, in models.CreateSequenceInput) (*models.ActionSequence, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	exists, err := s.hierarchyRepo.Exists(ctx, models.LevelPracticeGroup, practiceGroupID)
	if err := requireFound(exists, err, "practice group", practiceGroupID); err != nil {
		return nil, err
	}

	seq, err := s.repo.Create(ctx, practiceGroupID, in)
	if err != nil {
		s.logger.Error("Failed to create sequence",
			zap.String("practice_group_id", practiceGroupID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Created sequence",
		zap.String("sequence_id", seq.ID.String()),
		zap.String("name", seq.Name))
	return seq, nil
}

func (s *sequenceService) Get(ctx context.Context, id uuid.UUID) (*models.ActionSequence, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *sequenceService) GetWithActions(ctx context.Context, id uuid.UUID) (*models.SequenceWithActions, error) {
	seq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	if steps == nil {
		steps = []*models.SequenceStep{}
	}
	return &models.SequenceWithActions{ActionSequence: *seq, Steps: steps}, nil
}

func (s *sequenceService) Update(ctx context.Context, id uuid.UUID, in models.UpdateSequenceInput) (*models.ActionSequence, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, in)
}

func (s *sequenceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted sequence", zap.String("sequence_id", id.String()))
	return nil
}

func (s *sequenceService) List(ctx context.Context, practiceGroupID uuid.UUID, opts models.ListOptions) (*models.Page[*models.ActionSequence], error) {
	exists, err := s.hierarchyRepo.Exists(ctx, models.LevelPracticeGroup, practiceGroupID)
	if err := requireFound(exists, err, "practice group", practiceGroupID); err != nil {
		return nil, err
	}
	seqs, total, err := s.repo.ListByPracticeGroup(ctx, practiceGroupID, opts)
	if err != nil {
		return nil, err
	}
	return models.NewPage(seqs, total, opts.Bounded()), nil
}

// AddAction places an action in the sequence. A repeated action or an
// occupied order number is a conflict.
func (s *sequenceService) AddAction(ctx context.Context, sequenceID uuid.UUID, in models.AddSequenceActionInput) (*models.SequenceAction, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, sequenceID)
	if err := requireFound(exists, err, "sequence", sequenceID); err != nil {
		return nil, err
	}
	exists, err = s.actionRepo.Exists(ctx, in.ActionID)
	if err := requireFound(exists, err, "action", in.ActionID); err != nil {
		return nil, err
	}

	sa, err := s.repo.AddAction(ctx, sequenceID, in)
	if err != nil {
		s.logger.Warn("Failed to add action to sequence",
			zap.String("sequence_id", sequenceID.String()),
			zap.String("action_id", in.ActionID.String()),
			zap.Int("order_number", in.OrderNumber),
			zap.Error(err))
		return nil, err
	}
	return sa, nil
}

// UpdateSequenceAction never swaps: moving onto an occupied order number is a conflict.
func (s *sequenceService) UpdateSequenceAction(ctx context.Context, id uuid.UUID, in models.UpdateSequenceActionInput) (*models.SequenceAction, error) {
	if err := models.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.UpdateSequenceAction(ctx, id, in)
}

func (s *sequenceService) RemoveSequenceAction(ctx context.Context, id uuid.UUID) error {
	return s.repo.RemoveSequenceAction(ctx, id)
}
