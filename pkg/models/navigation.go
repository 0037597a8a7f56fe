package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a job function grouping the Tasks relevant to it.
type Role struct {
	ID           uuid.UUID `json:"id"`
	OwnerUserID  string    `json:"owner_user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task is a goal-oriented ordered collection of Actions.
type Task struct {
	ID           uuid.UUID `json:"id"`
	OwnerUserID  string    `json:"owner_user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateGraphNodeInput holds the fields of a new Role or Task.
type CreateGraphNodeInput struct {
	Name         string `json:"name" validate:"required,notblank,max=255"`
	Description  string `json:"description" validate:"max=10000"`
	DisplayOrder int    `json:"display_order" validate:"min=0"`
}

// UpdateGraphNodeInput holds a partial update of a Role or Task.
type UpdateGraphNodeInput struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	DisplayOrder *int    `json:"display_order,omitempty" validate:"omitempty,min=0"`
}

// IsEmpty reports whether no field is set.
func (u UpdateGraphNodeInput) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.DisplayOrder == nil
}

// RoleTask links a Task into a Role. DisplayOrder is scoped to RoleID.
type RoleTask struct {
	ID           uuid.UUID `json:"id"`
	RoleID       uuid.UUID `json:"role_id"`
	TaskID       uuid.UUID `json:"task_id"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskAction links an Action into a Task. DisplayOrder is scoped to TaskID
// and Notes carries task-specific context for an otherwise generic Action.
type TaskAction struct {
	ID           uuid.UUID `json:"id"`
	TaskID       uuid.UUID `json:"task_id"`
	ActionID     uuid.UUID `json:"action_id"`
	DisplayOrder int       `json:"display_order"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskInRole is a Task resolved through a RoleTask row.
type TaskInRole struct {
	Task
	DisplayOrder int       `json:"display_order"`
	RoleTaskID   uuid.UUID `json:"role_task_id"`
}

// RoleForTask is a Role resolved through a RoleTask row.
type RoleForTask struct {
	Role
	DisplayOrder int       `json:"display_order"`
	RoleTaskID   uuid.UUID `json:"role_task_id"`
}

// ActionInTask is an Action resolved through a TaskAction row.
type ActionInTask struct {
	Action
	DisplayOrder int       `json:"display_order"`
	Notes        string    `json:"notes"`
	TaskActionID uuid.UUID `json:"task_action_id"`
}

// TaskForAction is a Task resolved through a TaskAction row.
type TaskForAction struct {
	Task
	DisplayOrder int       `json:"display_order"`
	Notes        string    `json:"notes"`
	TaskActionID uuid.UUID `json:"task_action_id"`
}

// LinkTaskInput places a Task in a Role.
type LinkTaskInput struct {
	TaskID       uuid.UUID `json:"task_id" validate:"required"`
	DisplayOrder int       `json:"display_order" validate:"min=0"`
}

// LinkActionInput places an Action in a Task.
type LinkActionInput struct {
	ActionID     uuid.UUID `json:"action_id" validate:"required"`
	DisplayOrder int       `json:"display_order" validate:"min=0"`
	Notes        string    `json:"notes" validate:"max=10000"`
}

// UpdateTaskActionInput changes the order or note of one TaskAction row.
type UpdateTaskActionInput struct {
	DisplayOrder *int    `json:"display_order,omitempty" validate:"omitempty,min=0"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=10000"`
}

// IsEmpty reports whether no field is set.
func (u UpdateTaskActionInput) IsEmpty() bool {
	return u.DisplayOrder == nil && u.Notes == nil
}
