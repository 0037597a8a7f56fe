package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// SequenceRepository provides data access for action sequences and their steps.
type SequenceRepository interface {
	Create(ctx context.Context, practiceGroupID uuid.UUID, in models.CreateSequenceInput) (*models.ActionSequence, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ActionSequence, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateSequenceInput) (*models.ActionSequence, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPracticeGroup(ctx context.Context, practiceGroupID uuid.UUID, opts models.ListOptions) ([]*models.ActionSequence, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	AddAction(ctx context.Context, sequenceID uuid.UUID, in models.AddSequenceActionInput) (*models.SequenceAction, error)
	GetSequenceAction(ctx context.Context, id uuid.UUID) (*models.SequenceAction, error)
	UpdateSequenceAction(ctx context.Context, id uuid.UUID, in models.UpdateSequenceActionInput) (*models.SequenceAction, error)
	RemoveSequenceAction(ctx context.Context, id uuid.UUID) error
	ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error)
	ListForAction(ctx context.Context, actionID uuid.UUID) ([]*models.SequencePath, error)
}

type sequenceRepository struct{}

// NewSequenceRepository creates a new SequenceRepository.
func NewSequenceRepository() SequenceRepository {
	return &sequenceRepository{}
}

var _ SequenceRepository = (*sequenceRepository)(nil)

var sequenceColumns = []string{"id", "practice_group_id", "name", "description", "created_at", "updated_at"}

var sequenceActionColumns = []string{"id", "sequence_id", "action_id", "order_number", "notes", "created_at"}

// SequenceSortFields are the sortable fields of sequence list operations.
var SequenceSortFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

var sequenceConflicts = map[string]string{
	"sequence_actions_sequence_action_key": "action is already in this sequence",
	"sequence_actions_sequence_order_key":  "order number is already used in this sequence",
}

// ============================================================================
// Sequences
// ============================================================================

func (r *sequenceRepository) Create(ctx context.Context, practiceGroupID uuid.UUID, in models.CreateSequenceInput) (*models.ActionSequence, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO action_sequences (practice_group_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING ` + cols(sequenceColumns)

	seq, err := scanSequence(q.QueryRow(ctx, query, practiceGroupID, in.Name, in.Description))
	if err != nil {
		return nil, apperrors.FromPg("create sequence", err)
	}
	return seq, nil
}

func (r *sequenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ActionSequence, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	seq, err := scanSequence(q.QueryRow(ctx, `SELECT `+cols(sequenceColumns)+` FROM action_sequences WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("sequence", id)
		}
		return nil, apperrors.FromPg("get sequence", err)
	}
	return seq, nil
}

func (r *sequenceRepository) Update(ctx context.Context, id uuid.UUID, in models.UpdateSequenceInput) (*models.ActionSequence, error) {
	if in.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("action_sequences")
	assignments := []string{ub.Assign("updated_at", time.Now())}
	if in.Name != nil {
		assignments = append(assignments, ub.Assign("name", *in.Name))
	}
	if in.Description != nil {
		assignments = append(assignments, ub.Assign("description", *in.Description))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))
	query, args := ub.Build()
	query += " RETURNING " + cols(sequenceColumns)

	seq, err := scanSequence(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("sequence", id)
		}
		return nil, apperrors.FromPg("update sequence", err)
	}
	return seq, nil
}

func (r *sequenceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM action_sequences WHERE id = $1`, id)
	if err != nil {
		return apperrors.FromPg("delete sequence", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("sequence", id)
	}
	return nil
}

func (r *sequenceRepository) ListByPracticeGroup(ctx context.Context, practiceGroupID uuid.UUID, opts models.ListOptions) ([]*models.ActionSequence, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	opts, err = normalizeList(opts, "name", SequenceSortFields)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: sequenceColumns,
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("action_sequences")
			sb.Where(sb.Equal("practice_group_id", practiceGroupID))
		},
		sortable: SequenceSortFields,
		tiebreak: "id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count sequences", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list sequences", err)
	}
	defer rows.Close()

	seqs := []*models.ActionSequence{}
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, 0, apperrors.FromPg("scan sequence", err)
		}
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.FromPg("list sequences", err)
	}
	return seqs, total, nil
}

func (r *sequenceRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, q, "action_sequences", id)
}

// ============================================================================
// Steps
// ============================================================================

// AddAction places an action at in.OrderNumber. Both the pair and the
// position are unique per sequence and either collision is a conflict.
func (r *sequenceRepository) AddAction(ctx context.Context, sequenceID uuid.UUID, in models.AddSequenceActionInput) (*models.SequenceAction, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO sequence_actions (sequence_id, action_id, order_number, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + cols(sequenceActionColumns)

	sa, err := scanSequenceAction(q.QueryRow(ctx, query, sequenceID, in.ActionID, in.OrderNumber, in.Notes))
	if err != nil {
		return nil, translate("add sequence action", err, sequenceConflicts)
	}
	return sa, nil
}

func (r *sequenceRepository) GetSequenceAction(ctx context.Context, id uuid.UUID) (*models.SequenceAction, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	sa, err := scanSequenceAction(q.QueryRow(ctx, `SELECT `+cols(sequenceActionColumns)+` FROM sequence_actions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("sequence action", id)
		}
		return nil, apperrors.FromPg("get sequence action", err)
	}
	return sa, nil
}

// UpdateSequenceAction moves or annotates one step. Moving onto an occupied
// position is a conflict; positions are never swapped.
func (r *sequenceRepository) UpdateSequenceAction(ctx context.Context, id uuid.UUID, in models.UpdateSequenceActionInput) (*models.SequenceAction, error) {
	if in.IsEmpty() {
		return r.GetSequenceAction(ctx, id)
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("sequence_actions")
	var assignments []string
	if in.OrderNumber != nil {
		assignments = append(assignments, ub.Assign("order_number", *in.OrderNumber))
	}
	if in.Notes != nil {
		assignments = append(assignments, ub.Assign("notes", *in.Notes))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))
	query, args := ub.Build()
	query += " RETURNING " + cols(sequenceActionColumns)

	sa, err := scanSequenceAction(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("sequence action", id)
		}
		return nil, translate("update sequence action", err, sequenceConflicts)
	}
	return sa, nil
}

func (r *sequenceRepository) RemoveSequenceAction(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM sequence_actions WHERE id = $1`, id)
	if err != nil {
		return apperrors.FromPg("remove sequence action", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("sequence action", id)
	}
	return nil
}

// ListSteps returns the steps of a sequence with their actions, ascending by order number.
func (r *sequenceRepository) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + cols(qualify("sa", sequenceActionColumns)) + `, ` + cols(qualify("a", actionColumns)) + `
		FROM sequence_actions sa
		JOIN actions a ON a.id = sa.action_id
		WHERE sa.sequence_id = $1
		ORDER BY sa.order_number ASC`

	rows, err := q.Query(ctx, query, sequenceID)
	if err != nil {
		return nil, apperrors.FromPg("list sequence steps", err)
	}
	defer rows.Close()

	steps := []*models.SequenceStep{}
	for rows.Next() {
		var step models.SequenceStep
		var a models.Action
		err := rows.Scan(
			&step.ID, &step.SequenceID, &step.ActionID, &step.OrderNumber, &step.Notes, &step.CreatedAt,
			&a.ID, &a.SystemID, &a.PracticeGroupID, &a.Title, &a.Description, &a.Steps,
			&a.DisplayOrder, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.FromPg("scan sequence step", err)
		}
		step.Action = &a
		steps = append(steps, &step)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.FromPg("list sequence steps", err)
	}
	return steps, nil
}

// ListForAction returns every sequence containing the action with its position.
func (r *sequenceRepository) ListForAction(ctx context.Context, actionID uuid.UUID) ([]*models.SequencePath, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + cols(qualify("s", sequenceColumns)) + `, sa.order_number
		FROM sequence_actions sa
		JOIN action_sequences s ON s.id = sa.sequence_id
		WHERE sa.action_id = $1
		ORDER BY s.name, s.id`

	rows, err := q.Query(ctx, query, actionID)
	if err != nil {
		return nil, apperrors.FromPg("list sequences for action", err)
	}
	defer rows.Close()

	paths := []*models.SequencePath{}
	for rows.Next() {
		var s models.ActionSequence
		var p models.SequencePath
		if err := rows.Scan(&s.ID, &s.PracticeGroupID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt, &p.OrderNumber); err != nil {
			return nil, apperrors.FromPg("scan sequence path", err)
		}
		p.Sequence = &s
		paths = append(paths, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.FromPg("list sequences for action", err)
	}
	return paths, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func scanSequence(row pgx.Row) (*models.ActionSequence, error) {
	var s models.ActionSequence
	if err := row.Scan(&s.ID, &s.PracticeGroupID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSequenceAction(row pgx.Row) (*models.SequenceAction, error) {
	var sa models.SequenceAction
	if err := row.Scan(&sa.ID, &sa.SequenceID, &sa.ActionID, &sa.OrderNumber, &sa.Notes, &sa.CreatedAt); err != nil {
		return nil, err
	}
	return &sa, nil
}
