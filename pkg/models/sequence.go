package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionSequence is a named, explicitly ordered workflow of Actions.
type ActionSequence struct {
	ID              uuid.UUID `json:"id"`
	PracticeGroupID uuid.UUID `json:"practice_group_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SequenceAction pins an Action at one position of a sequence. Both
// (SequenceID, ActionID) and (SequenceID, OrderNumber) are unique.
type SequenceAction struct {
	ID          uuid.UUID `json:"id"`
	SequenceID  uuid.UUID `json:"sequence_id"`
	ActionID    uuid.UUID `json:"action_id"`
	OrderNumber int       `json:"order_number"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// SequenceStep is a SequenceAction with its Action resolved.
type SequenceStep struct {
	SequenceAction
	Action *Action `json:"action"`
}

// SequenceWithActions is a sequence and its steps in ascending order.
type SequenceWithActions struct {
	ActionSequence
	Steps []*SequenceStep `json:"steps"`
}

// CreateSequenceInput holds the fields of a new sequence.
type CreateSequenceInput struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=10000"`
}

// UpdateSequenceInput holds a partial update.
type UpdateSequenceInput struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=10000"`
}

// IsEmpty reports whether no field is set.
func (u UpdateSequenceInput) IsEmpty() bool {
	return u.Name == nil && u.Description == nil
}

// AddSequenceActionInput places an action in a sequence.
type AddSequenceActionInput struct {
	ActionID    uuid.UUID `json:"action_id" validate:"required"`
	OrderNumber int       `json:"order_number" validate:"min=1"`
	Notes       string    `json:"notes" validate:"max=10000"`
}

// UpdateSequenceActionInput changes the position or note of one step.
type UpdateSequenceActionInput struct {
	OrderNumber *int    `json:"order_number,omitempty" validate:"omitempty,min=1"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=10000"`
}

// IsEmpty reports whether no field is set.
func (u UpdateSequenceActionInput) IsEmpty() bool {
	return u.OrderNumber == nil && u.Notes == nil
}
