package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkType classifies what a Link points at.
type LinkType string

const (
	LinkTypeDocumentation  LinkType = "documentation"
	LinkTypeVideo          LinkType = "video"
	LinkTypeSupportArticle LinkType = "support_article"
	LinkTypeTool           LinkType = "tool"
	LinkTypeInternalWiki   LinkType = "internal_wiki"
	LinkTypeVendorSite     LinkType = "vendor_site"
	LinkTypeTraining       LinkType = "training"
	LinkTypeOther          LinkType = "other"
)

// AuthRequirement describes what a reader needs to open a Link.
type AuthRequirement string

const (
	AuthNone        AuthRequirement = "none"
	AuthLogin       AuthRequirement = "login"
	AuthVPN         AuthRequirement = "vpn"
	AuthSSO         AuthRequirement = "sso"
	AuthCredentials AuthRequirement = "credentials"
)

// LinkStatus is the health of a Link. Transitions are manual only.
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusInactive LinkStatus = "inactive"
	LinkStatusBroken   LinkStatus = "broken"
	LinkStatusOutdated LinkStatus = "outdated"
)

// LinkParentKind is one of the four entity kinds a Link can be attached to.
type LinkParentKind string

const (
	LinkParentSystem LinkParentKind = "system"
	LinkParentAction LinkParentKind = "action"
	LinkParentRole   LinkParentKind = "role"
	LinkParentTask   LinkParentKind = "task"
)

// LinkParentKinds lists every attachable kind in a stable order.
var LinkParentKinds = []LinkParentKind{LinkParentSystem, LinkParentAction, LinkParentRole, LinkParentTask}

// IsValid reports whether k is an attachable kind.
func (k LinkParentKind) IsValid() bool {
	switch k {
	case LinkParentSystem, LinkParentAction, LinkParentRole, LinkParentTask:
		return true
	default:
		return false
	}
}

// Link is a canonical external reference shared by every attachment.
type Link struct {
	ID             uuid.UUID       `json:"id"`
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	LinkType       LinkType        `json:"link_type"`
	AuthRequired   AuthRequirement `json:"auth_required"`
	AccessNotes    string          `json:"access_notes"`
	Status         LinkStatus      `json:"status"`
	LastVerifiedAt *time.Time      `json:"last_verified_at,omitempty"`
	Notes          string          `json:"notes"`
	ThumbnailRef   string          `json:"thumbnail_ref"`
	OpenInNewTab   bool            `json:"open_in_new_tab"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CheckedAt returns the timestamp a staleness check measures from.
func (l *Link) CheckedAt() time.Time {
	if l.LastVerifiedAt != nil {
		return *l.LastVerifiedAt
	}
	return l.CreatedAt
}

// IsStale reports whether an active link has gone unverified for longer than window.
func (l *Link) IsStale(now time.Time, window time.Duration) bool {
	return l.Status == LinkStatusActive && now.Sub(l.CheckedAt()) > window
}

// CreateLinkInput holds the fields of a new Link.
type CreateLinkInput struct {
	URL          string          `json:"url" validate:"required,httpurl,max=2048"`
	Title        string          `json:"title" validate:"required,notblank,max=255"`
	Description  string          `json:"description" validate:"max=10000"`
	LinkType     LinkType        `json:"link_type" validate:"omitempty,oneof=documentation video support_article tool internal_wiki vendor_site training other"`
	AuthRequired AuthRequirement `json:"auth_required" validate:"omitempty,oneof=none login vpn sso credentials"`
	AccessNotes  string          `json:"access_notes" validate:"max=10000"`
	Status       LinkStatus      `json:"status" validate:"omitempty,oneof=active inactive broken outdated"`
	Notes        string          `json:"notes" validate:"max=10000"`
	ThumbnailRef string          `json:"thumbnail_ref" validate:"max=1024"`
	OpenInNewTab *bool           `json:"open_in_new_tab,omitempty"`
}

// UpdateLinkInput holds a partial update, including manual status transitions.
type UpdateLinkInput struct {
	URL          *string          `json:"url,omitempty" validate:"omitempty,httpurl,max=2048"`
	Title        *string          `json:"title,omitempty" validate:"omitempty,notblank,max=255"`
	Description  *string          `json:"description,omitempty" validate:"omitempty,max=10000"`
	LinkType     *LinkType        `json:"link_type,omitempty" validate:"omitempty,oneof=documentation video support_article tool internal_wiki vendor_site training other"`
	AuthRequired *AuthRequirement `json:"auth_required,omitempty" validate:"omitempty,oneof=none login vpn sso credentials"`
	AccessNotes  *string          `json:"access_notes,omitempty" validate:"omitempty,max=10000"`
	Status       *LinkStatus      `json:"status,omitempty" validate:"omitempty,oneof=active inactive broken outdated"`
	Notes        *string          `json:"notes,omitempty" validate:"omitempty,max=10000"`
	ThumbnailRef *string          `json:"thumbnail_ref,omitempty" validate:"omitempty,max=1024"`
	OpenInNewTab *bool            `json:"open_in_new_tab,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UpdateLinkInput) IsEmpty() bool {
	return u.URL == nil && u.Title == nil && u.Description == nil && u.LinkType == nil &&
		u.AuthRequired == nil && u.AccessNotes == nil && u.Status == nil && u.Notes == nil &&
		u.ThumbnailRef == nil && u.OpenInNewTab == nil
}

// LinkAttachment is one junction row between a Link and a parent entity.
type LinkAttachment struct {
	ID           uuid.UUID      `json:"id"`
	ParentKind   LinkParentKind `json:"parent_kind"`
	ParentID     uuid.UUID      `json:"parent_id"`
	LinkID       uuid.UUID      `json:"link_id"`
	DisplayOrder int            `json:"display_order"`
	Notes        string         `json:"notes"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AttachedLink is a Link resolved through an attachment row.
type AttachedLink struct {
	Link
	AttachmentID uuid.UUID `json:"attachment_id"`
	DisplayOrder int       `json:"display_order"`
	ContextNotes string    `json:"context_notes"`
}

// AttachLinkInput attaches (or re-attaches) a Link to a parent.
type AttachLinkInput struct {
	ParentKind   LinkParentKind `json:"parent_kind" validate:"required,oneof=system action role task"`
	ParentID     uuid.UUID      `json:"parent_id" validate:"required"`
	LinkID       uuid.UUID      `json:"link_id" validate:"required"`
	DisplayOrder int            `json:"display_order" validate:"min=0"`
	Notes        string         `json:"notes" validate:"max=10000"`
}

// ReorderLinkInput moves an existing attachment.
type ReorderLinkInput struct {
	ParentKind   LinkParentKind `json:"parent_kind" validate:"required,oneof=system action role task"`
	ParentID     uuid.UUID      `json:"parent_id" validate:"required"`
	LinkID       uuid.UUID      `json:"link_id" validate:"required"`
	DisplayOrder int            `json:"display_order" validate:"min=0"`
}

// LinkUsage counts the attachments of one Link per parent kind.
type LinkUsage struct {
	LinkID      uuid.UUID  `json:"link_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Status      LinkStatus `json:"status"`
	SystemCount int        `json:"system_count"`
	ActionCount int        `json:"action_count"`
	RoleCount   int        `json:"role_count"`
	TaskCount   int        `json:"task_count"`
	TotalCount  int        `json:"total_count"`
}

// LinkFilter narrows ListLinks.
type LinkFilter struct {
	Status   LinkStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive broken outdated"`
	LinkType LinkType   `json:"link_type,omitempty" validate:"omitempty,oneof=documentation video support_article tool internal_wiki vendor_site training other"`
}
