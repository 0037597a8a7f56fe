package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionParentKind names the hierarchy tier an Action hangs from.
type ActionParentKind string

const (
	ActionParentSystem        ActionParentKind = "system"
	ActionParentPracticeGroup ActionParentKind = "practice_group"
)

// IsValid reports whether k is an accepted Action parent tier.
func (k ActionParentKind) IsValid() bool {
	return k == ActionParentSystem || k == ActionParentPracticeGroup
}

// Action is the atomic documentation unit. Exactly one of SystemID and
// PracticeGroupID is set. Steps is an ordered JSON array that this service
// stores without interpreting.
type Action struct {
	ID              uuid.UUID       `json:"id"`
	SystemID        *uuid.UUID      `json:"system_id,omitempty"`
	PracticeGroupID *uuid.UUID      `json:"practice_group_id,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Steps           json.RawMessage `json:"steps"`
	DisplayOrder    int             `json:"display_order"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ParentKind returns which hierarchy tier the action is attached to.
func (a *Action) ParentKind() ActionParentKind {
	if a.SystemID != nil {
		return ActionParentSystem
	}
	return ActionParentPracticeGroup
}

// CreateActionInput holds the fields of a new Action.
type CreateActionInput struct {
	SystemID        *uuid.UUID      `json:"system_id,omitempty"`
	PracticeGroupID *uuid.UUID      `json:"practice_group_id,omitempty"`
	Title           string          `json:"title" validate:"required,notblank,max=255"`
	Description     string          `json:"description" validate:"max=10000"`
	Steps           json.RawMessage `json:"steps,omitempty"`
	DisplayOrder    int             `json:"display_order" validate:"min=0"`
}

// UpdateActionInput holds a partial update. The hierarchy parent cannot change.
type UpdateActionInput struct {
	Title        *string         `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Description  *string         `json:"description,omitempty" validate:"omitempty,max=10000"`
	Steps        json.RawMessage `json:"steps,omitempty"`
	DisplayOrder *int            `json:"display_order,omitempty" validate:"omitempty,min=0"`
}

// IsEmpty reports whether no field is set.
func (u UpdateActionInput) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Steps == nil && u.DisplayOrder == nil
}

// Screenshot is a reference to an image held by the external screenshot
// subsystem. Ref is opaque; only the reference row lives here.
type Screenshot struct {
	ID        uuid.UUID `json:"id"`
	ActionID  uuid.UUID `json:"action_id"`
	Ref       string    `json:"screenshot_ref"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}

// AddScreenshotInput holds the fields of a new screenshot reference.
type AddScreenshotInput struct {
	Ref     string `json:"screenshot_ref" validate:"required,notblank,max=1024"`
	Caption string `json:"caption" validate:"max=1000"`
}

// ActionPaths lists every route through which an Action is reachable.
type ActionPaths struct {
	Action    *Action          `json:"action"`
	Hierarchy []*HierarchyNode `json:"hierarchy"` // root first
	Tasks     []*TaskPath      `json:"tasks"`
	Sequences []*SequencePath  `json:"sequences"`
}

// TaskPath is one Task membership of an Action plus the Roles containing that Task.
type TaskPath struct {
	Task         *Task   `json:"task"`
	DisplayOrder int     `json:"display_order"`
	Notes        string  `json:"notes"`
	Roles        []*Role `json:"roles"`
}

// SequencePath is one Sequence membership of an Action.
type SequencePath struct {
	Sequence    *ActionSequence `json:"sequence"`
	OrderNumber int             `json:"order_number"`
}
