package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// LinkRepository provides data access for links and their attachments to
// systems, actions, roles and tasks.
type LinkRepository interface {
	Create(ctx context.Context, in models.CreateLinkInput, createdBy string) (*models.Link, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error)
	Update(ctx context.Context, id uuid.UUID, in models.UpdateLinkInput) (*models.Link, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter models.LinkFilter, opts models.ListOptions) ([]*models.Link, int, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ParentExists(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) (bool, error)

	Attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error)
	Detach(ctx context.Context, kind models.LinkParentKind, parentID, linkID uuid.UUID) error
	Reorder(ctx context.Context, in models.ReorderLinkInput) (*models.LinkAttachment, error)
	LinksFor(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) ([]*models.AttachedLink, error)

	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (*models.Link, error)
	UsageStats(ctx context.Context, linkID *uuid.UUID) ([]*models.LinkUsage, error)
	Orphaned(ctx context.Context) ([]*models.Link, error)
	NeedingVerification(ctx context.Context, cutoff time.Time) ([]*models.Link, error)
}

type linkRepository struct{}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository() LinkRepository {
	return &linkRepository{}
}

var _ LinkRepository = (*linkRepository)(nil)

var linkColumns = []string{
	"id", "url", "title", "description", "link_type", "auth_required", "access_notes",
	"status", "last_verified_at", "notes", "thumbnail_ref", "open_in_new_tab",
	"created_by", "created_at", "updated_at",
}

// LinkSortFields are the sortable fields of ListLinks.
var LinkSortFields = map[string]string{
	"title":            "title",
	"status":           "status",
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"last_verified_at": "last_verified_at",
}

// junction names the physical attachment table of one parent kind.
type junction struct {
	table        string
	parentColumn string
	parentTable  string
}

var junctions = map[models.LinkParentKind]junction{
	models.LinkParentSystem: {table: "system_links", parentColumn: "system_id", parentTable: "systems"},
	models.LinkParentAction: {table: "action_links", parentColumn: "action_id", parentTable: "actions"},
	models.LinkParentRole:   {table: "role_links", parentColumn: "role_id", parentTable: "roles"},
	models.LinkParentTask:   {table: "task_links", parentColumn: "task_id", parentTable: "tasks"},
}

func junctionFor(kind models.LinkParentKind) (junction, error) {
	j, ok := junctions[kind]
	if !ok {
		return junction{}, apperrors.Validation("unknown link parent kind %q", kind)
	}
	return j, nil
}

// ============================================================================
// CRUD Operations
// ============================================================================

// Create inserts a link. Enumerations must already carry their defaults.
func (r *linkRepository) Create(ctx context.Context, in models.CreateLinkInput, createdBy string) (*models.Link, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	openInNewTab := true
	if in.OpenInNewTab != nil {
		openInNewTab = *in.OpenInNewTab
	}

	query := `
		INSERT INTO links (
			url, title, description, link_type, auth_required, access_notes,
			status, notes, thumbnail_ref, open_in_new_tab, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + cols(linkColumns)

	link, err := scanLink(q.QueryRow(ctx, query,
		in.URL,
		in.Title,
		in.Description,
		in.LinkType,
		in.AuthRequired,
		in.AccessNotes,
		in.Status,
		in.Notes,
		in.ThumbnailRef,
		openInNewTab,
		createdBy,
	))
	if err != nil {
		return nil, apperrors.FromPg("create link", err)
	}
	return link, nil
}

// GetByID returns the link regardless of status.
func (r *linkRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	link, err := scanLink(q.QueryRow(ctx, `SELECT `+cols(linkColumns)+` FROM links WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("link", id)
		}
		return nil, apperrors.FromPg("get link", err)
	}
	return link, nil
}

func (r *linkRepository) Update(ctx context.Context, id uuid.UUID, in models.UpdateLinkInput) (*models.Link, error) {
	if in.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("links")
	assignments := []string{ub.Assign("updated_at", time.Now())}
	set := func(column string, value any) {
		assignments = append(assignments, ub.Assign(column, value))
	}
	if in.URL != nil {
		set("url", *in.URL)
	}
	if in.Title != nil {
		set("title", *in.Title)
	}
	if in.Description != nil {
		set("description", *in.Description)
	}
	if in.LinkType != nil {
		set("link_type", *in.LinkType)
	}
	if in.AuthRequired != nil {
		set("auth_required", *in.AuthRequired)
	}
	if in.AccessNotes != nil {
		set("access_notes", *in.AccessNotes)
	}
	if in.Status != nil {
		set("status", *in.Status)
	}
	if in.Notes != nil {
		set("notes", *in.Notes)
	}
	if in.ThumbnailRef != nil {
		set("thumbnail_ref", *in.ThumbnailRef)
	}
	if in.OpenInNewTab != nil {
		set("open_in_new_tab", *in.OpenInNewTab)
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))
	query, args := ub.Build()
	query += " RETURNING " + cols(linkColumns)

	link, err := scanLink(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("link", id)
		}
		return nil, apperrors.FromPg("update link", err)
	}
	return link, nil
}

// Delete removes the link and, through cascades, every attachment of it.
func (r *linkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	result, err := q.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return apperrors.FromPg("delete link", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("link", id)
	}
	return nil
}

func (r *linkRepository) List(ctx context.Context, filter models.LinkFilter, opts models.ListOptions) ([]*models.Link, int, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, 0, err
	}
	opts, err = normalizeList(opts, "title", LinkSortFields)
	if err != nil {
		return nil, 0, err
	}

	lq := listQuery{
		columns: linkColumns,
		apply: func(sb *sqlbuilder.SelectBuilder) {
			sb.From("links")
			if filter.Status != "" {
				sb.Where(sb.Equal("status", filter.Status))
			}
			if filter.LinkType != "" {
				sb.Where(sb.Equal("link_type", filter.LinkType))
			}
		},
		sortable: LinkSortFields,
		tiebreak: "id ASC",
	}
	pageSQL, pageArgs, countSQL, countArgs := lq.build(opts)

	total, err := countRows(ctx, q, countSQL, countArgs)
	if err != nil {
		return nil, 0, apperrors.FromPg("count links", err)
	}
	rows, err := q.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, apperrors.FromPg("list links", err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, 0, apperrors.FromPg("list links", err)
	}
	return links, total, nil
}

func (r *linkRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, q, "links", id)
}

// ParentExists reports whether the entity a link would attach to exists.
func (r *linkRepository) ParentExists(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) (bool, error) {
	j, err := junctionFor(kind)
	if err != nil {
		return false, err
	}
	q, err := querier(ctx)
	if err != nil {
		return false, err
	}
	return rowExists(ctx, q, j.parentTable, parentID)
}

// ============================================================================
// Attachments
// ============================================================================

// Attach creates the attachment or, when the pair already exists, replaces
// its order and note. Unlike the navigation junctions this never conflicts.
func (r *linkRepository) Attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error) {
	j, err := junctionFor(in.ParentKind)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, link_id, display_order, notes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (%[2]s, link_id) DO UPDATE
		SET display_order = EXCLUDED.display_order, notes = EXCLUDED.notes
		RETURNING id, %[2]s, link_id, display_order, notes, created_at`, j.table, j.parentColumn)

	att, err := scanAttachment(q.QueryRow(ctx, query, in.ParentID, in.LinkID, in.DisplayOrder, in.Notes), in.ParentKind)
	if err != nil {
		return nil, apperrors.FromPg("attach link", err)
	}
	return att, nil
}

func (r *linkRepository) Detach(ctx context.Context, kind models.LinkParentKind, parentID, linkID uuid.UUID) error {
	j, err := junctionFor(kind)
	if err != nil {
		return err
	}
	q, err := querier(ctx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND link_id = $2`, j.table, j.parentColumn)
	result, err := q.Exec(ctx, query, parentID, linkID)
	if err != nil {
		return apperrors.FromPg("detach link", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("link attachment", linkID)
	}
	return nil
}

// Reorder moves an existing attachment; it does not create one.
func (r *linkRepository) Reorder(ctx context.Context, in models.ReorderLinkInput) (*models.LinkAttachment, error) {
	j, err := junctionFor(in.ParentKind)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s SET display_order = $3
		WHERE %[2]s = $1 AND link_id = $2
		RETURNING id, %[2]s, link_id, display_order, notes, created_at`, j.table, j.parentColumn)

	att, err := scanAttachment(q.QueryRow(ctx, query, in.ParentID, in.LinkID, in.DisplayOrder), in.ParentKind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("link attachment", in.LinkID)
		}
		return nil, apperrors.FromPg("reorder link", err)
	}
	return att, nil
}

// LinksFor returns the active links attached to a parent, by attachment
// order and then newest link first. Inactive, broken and outdated links are
// hidden here but still reachable through GetByID.
func (r *linkRepository) LinksFor(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) ([]*models.AttachedLink, error) {
	j, err := junctionFor(kind)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s, j.id, j.display_order, j.notes
		FROM %s j
		JOIN links l ON l.id = j.link_id
		WHERE j.%s = $1 AND l.status = $2
		ORDER BY j.display_order ASC, l.created_at DESC`,
		cols(qualify("l", linkColumns)), j.table, j.parentColumn)

	rows, err := q.Query(ctx, query, parentID, models.LinkStatusActive)
	if err != nil {
		return nil, apperrors.FromPg("list links for "+string(kind), err)
	}
	defer rows.Close()

	out := []*models.AttachedLink{}
	for rows.Next() {
		var al models.AttachedLink
		dest := append(linkDest(&al.Link), &al.AttachmentID, &al.DisplayOrder, &al.ContextNotes)
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.FromPg("scan attached link", err)
		}
		out = append(out, &al)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.FromPg("list links for "+string(kind), err)
	}
	return out, nil
}

// ============================================================================
// Maintenance
// ============================================================================

// MarkVerified stamps last_verified_at. Status is left unchanged.
func (r *linkRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (*models.Link, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE links SET last_verified_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING ` + cols(linkColumns)

	link, err := scanLink(q.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("link", id)
		}
		return nil, apperrors.FromPg("verify link", err)
	}
	return link, nil
}

// UsageStats counts the attachments of every link, or of one link when linkID is set.
func (r *linkRepository) UsageStats(ctx context.Context, linkID *uuid.UUID) ([]*models.LinkUsage, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT l.id, l.title, l.url, l.status,
		       (SELECT COUNT(*) FROM system_links s WHERE s.link_id = l.id),
		       (SELECT COUNT(*) FROM action_links a WHERE a.link_id = l.id),
		       (SELECT COUNT(*) FROM role_links r WHERE r.link_id = l.id),
		       (SELECT COUNT(*) FROM task_links t WHERE t.link_id = l.id)
		FROM links l
		WHERE $1::uuid IS NULL OR l.id = $1
		ORDER BY l.title, l.id`

	rows, err := q.Query(ctx, query, linkID)
	if err != nil {
		return nil, apperrors.FromPg("link usage stats", err)
	}
	defer rows.Close()

	out := []*models.LinkUsage{}
	for rows.Next() {
		var u models.LinkUsage
		if err := rows.Scan(&u.LinkID, &u.Title, &u.URL, &u.Status,
			&u.SystemCount, &u.ActionCount, &u.RoleCount, &u.TaskCount); err != nil {
			return nil, apperrors.FromPg("scan link usage", err)
		}
		u.TotalCount = u.SystemCount + u.ActionCount + u.RoleCount + u.TaskCount
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.FromPg("link usage stats", err)
	}
	return out, nil
}

// Orphaned returns links with no attachment of any kind, oldest first.
func (r *linkRepository) Orphaned(ctx context.Context) ([]*models.Link, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + cols(qualify("l", linkColumns)) + `
		FROM links l
		WHERE NOT EXISTS (SELECT 1 FROM system_links s WHERE s.link_id = l.id)
		  AND NOT EXISTS (SELECT 1 FROM action_links a WHERE a.link_id = l.id)
		  AND NOT EXISTS (SELECT 1 FROM role_links r WHERE r.link_id = l.id)
		  AND NOT EXISTS (SELECT 1 FROM task_links t WHERE t.link_id = l.id)
		ORDER BY l.created_at, l.id`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, apperrors.FromPg("list orphaned links", err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, apperrors.FromPg("list orphaned links", err)
	}
	return links, nil
}

// NeedingVerification returns active links last checked before cutoff,
// least recently checked first. Never-verified links are measured from creation.
func (r *linkRepository) NeedingVerification(ctx context.Context, cutoff time.Time) ([]*models.Link, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + cols(linkColumns) + `
		FROM links
		WHERE status = $1 AND COALESCE(last_verified_at, created_at) < $2
		ORDER BY COALESCE(last_verified_at, created_at) ASC, id`

	rows, err := q.Query(ctx, query, models.LinkStatusActive, cutoff)
	if err != nil {
		return nil, apperrors.FromPg("list links needing verification", err)
	}
	links, err := collectLinks(rows)
	if err != nil {
		return nil, apperrors.FromPg("list links needing verification", err)
	}
	return links, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func linkDest(l *models.Link) []any {
	return []any{
		&l.ID, &l.URL, &l.Title, &l.Description, &l.LinkType, &l.AuthRequired, &l.AccessNotes,
		&l.Status, &l.LastVerifiedAt, &l.Notes, &l.ThumbnailRef, &l.OpenInNewTab,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	}
}

func scanLink(row pgx.Row) (*models.Link, error) {
	var l models.Link
	if err := row.Scan(linkDest(&l)...); err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLinks(rows pgx.Rows) ([]*models.Link, error) {
	defer rows.Close()
	links := []*models.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func scanAttachment(row pgx.Row, kind models.LinkParentKind) (*models.LinkAttachment, error) {
	att := models.LinkAttachment{ParentKind: kind}
	if err := row.Scan(&att.ID, &att.ParentID, &att.LinkID, &att.DisplayOrder, &att.Notes, &att.CreatedAt); err != nil {
		return nil, err
	}
	return &att, nil
}
