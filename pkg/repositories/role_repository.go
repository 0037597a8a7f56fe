package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// RoleRepository provides data access for roles.
// Roles are owned by the subject that created them.
type RoleRepository interface {
	Create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*models.Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Role, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type roleRepository struct {
	t ownedTable
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository() RoleRepository {
	return &roleRepository{t: ownedTable{table: "roles", label: "role"}}
}

var _ RoleRepository = (*roleRepository)(nil)

func (r *roleRepository) Create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*models.Role, error) {
	row, err := r.t.create(ctx, owner, in)
	if err != nil {
		return nil, err
	}
	return (*models.Role)(row), nil
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	row, err := r.t.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return (*models.Role)(row), nil
}

func (r *roleRepository) Update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Role, error) {
	row, err := r.t.update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return (*models.Role)(row), nil
}

// Delete removes the role. Its navigation and link rows cascade.
func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.t.delete(ctx, id)
}

func (r *roleRepository) ListByOwner(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Role, int, error) {
	rows, total, err := r.t.list(ctx, owner, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*models.Role, len(rows))
	for i, row := range rows {
		out[i] = (*models.Role)(row)
	}
	return out, total, nil
}

func (r *roleRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.exists(ctx, id)
}
