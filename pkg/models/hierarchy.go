package models

import (
	"time"

	"github.com/google/uuid"
)

// HierarchyLevel identifies a tier of the System → Department → PracticeGroup tree.
type HierarchyLevel string

const (
	LevelSystem        HierarchyLevel = "system"
	LevelDepartment    HierarchyLevel = "department"
	LevelPracticeGroup HierarchyLevel = "practice_group"
)

// Parent returns the level directly above l, or "" for systems.
func (l HierarchyLevel) Parent() HierarchyLevel {
	switch l {
	case LevelDepartment:
		return LevelSystem
	case LevelPracticeGroup:
		return LevelDepartment
	default:
		return ""
	}
}

// IsValid reports whether l is one of the three tree levels.
func (l HierarchyLevel) IsValid() bool {
	switch l {
	case LevelSystem, LevelDepartment, LevelPracticeGroup:
		return true
	default:
		return false
	}
}

// HierarchyNode is a System, Department or PracticeGroup.
// ParentID is nil only for systems.
type HierarchyNode struct {
	ID           uuid.UUID      `json:"id"`
	Level        HierarchyLevel `json:"level"`
	ParentID     *uuid.UUID     `json:"parent_id,omitempty"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	DisplayOrder int            `json:"display_order"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateNodeInput holds the fields of a new hierarchy node.
type CreateNodeInput struct {
	Name         string `json:"name" validate:"required,notblank,max=255"`
	Description  string `json:"description" validate:"max=10000"`
	DisplayOrder int    `json:"display_order" validate:"min=0"`
}

// UpdateNodeInput holds a partial update. Nil fields are left untouched.
// There is deliberately no parent field: nodes cannot be moved.
type UpdateNodeInput struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=10000"`
	DisplayOrder *int    `json:"display_order,omitempty" validate:"omitempty,min=0"`
}

// IsEmpty reports whether no field is set.
func (u UpdateNodeInput) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.DisplayOrder == nil
}

// SystemTree is a system with every descendant nested in display order.
type SystemTree struct {
	HierarchyNode
	Actions     []*ActionSummary  `json:"actions"`
	Departments []*DepartmentTree `json:"departments"`
}

// DepartmentTree is a department with its practice groups.
type DepartmentTree struct {
	HierarchyNode
	PracticeGroups []*PracticeGroupTree `json:"practice_groups"`
}

// PracticeGroupTree is a practice group with its actions.
type PracticeGroupTree struct {
	HierarchyNode
	Actions []*ActionSummary `json:"actions"`
}

// ActionSummary is the light form of an Action used inside trees.
type ActionSummary struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	DisplayOrder int       `json:"display_order"`
}
