package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// TaskRepository provides data access for tasks.
// Tasks are owned by the subject that created them.
type TaskRepository interface {
	Create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*models.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Task, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type taskRepository struct {
	t ownedTable
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository() TaskRepository {
	return &taskRepository{t: ownedTable{table: "tasks", label: "task"}}
}

var _ TaskRepository = (*taskRepository)(nil)

func (r *taskRepository) Create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*models.Task, error) {
	row, err := r.t.create(ctx, owner, in)
	if err != nil {
		return nil, err
	}
	return (*models.Task)(row), nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row, err := r.t.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return (*models.Task)(row), nil
}

func (r *taskRepository) Update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Task, error) {
	row, err := r.t.update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return (*models.Task)(row), nil
}

// Delete removes the task. Its navigation and link rows cascade.
func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.t.delete(ctx, id)
}

func (r *taskRepository) ListByOwner(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Task, int, error) {
	rows, total, err := r.t.list(ctx, owner, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*models.Task, len(rows))
	for i, row := range rows {
		out[i] = (*models.Task)(row)
	}
	return out, total, nil
}

func (r *taskRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.exists(ctx, id)
}
