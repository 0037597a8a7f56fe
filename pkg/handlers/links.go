package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
)

// AttachRequest for POST /api/{kind}/{id}/links
type AttachRequest struct {
	LinkID       uuid.UUID `json:"link_id"`
	DisplayOrder int       `json:"display_order"`
	Notes        string    `json:"notes"`
}

// BulkAttachRequest for POST /api/links/bulk-attach
type BulkAttachRequest struct {
	Items []models.AttachLinkInput `json:"items"`
}

// ReorderAllRequest for PUT /api/links/reorder
type ReorderAllRequest struct {
	Items []models.ReorderLinkInput `json:"items"`
}

// linkParents maps the collection segment of each attachable entity to its kind.
var linkParents = map[string]models.LinkParentKind{
	"systems": models.LinkParentSystem,
	"actions": models.LinkParentAction,
	"roles":   models.LinkParentRole,
	"tasks":   models.LinkParentTask,
}

// LinkHandler serves the link catalogue, attachments and maintenance reports.
type LinkHandler struct {
	linkService services.LinkService
	logger      *zap.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(linkService services.LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		logger:      logger,
	}
}

// RegisterRoutes registers the link handler's routes on the given mux.
func (h *LinkHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware Authenticator, scopeMiddleware ScopeMiddleware) {
	protect := guard(authMiddleware, scopeMiddleware)

	mux.HandleFunc("GET /api/links", protect(h.List))
	mux.HandleFunc("POST /api/links", protect(h.Create))
	mux.HandleFunc("GET /api/links/usage", protect(h.Usage))
	mux.HandleFunc("GET /api/links/orphaned", protect(h.Orphaned))
	mux.HandleFunc("GET /api/links/needs-verification", protect(h.NeedsVerification))
	mux.HandleFunc("POST /api/links/bulk-attach", protect(h.BulkAttach))
	mux.HandleFunc("PUT /api/links/reorder", protect(h.ReorderAll))
	mux.HandleFunc("GET /api/links/{id}", protect(h.Get))
	mux.HandleFunc("PUT /api/links/{id}", protect(h.Update))
	mux.HandleFunc("DELETE /api/links/{id}", protect(h.Delete))
	mux.HandleFunc("POST /api/links/{id}/verify", protect(h.Verify))

	for segment, kind := range linkParents {
		base := "/api/" + segment + "/{id}/links"
		mux.HandleFunc("GET "+base, protect(h.linksFor(kind)))
		mux.HandleFunc("POST "+base, protect(h.attach(kind)))
		mux.HandleFunc("PUT "+base+"/{linkId}", protect(h.reorder(kind)))
		mux.HandleFunc("DELETE "+base+"/{linkId}", protect(h.detach(kind)))
	}
}

// ============================================================================
// Catalogue
// ============================================================================

// List handles GET /api/links?status=&link_type=
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	filter := models.LinkFilter{
		Status:   models.LinkStatus(r.URL.Query().Get("status")),
		LinkType: models.LinkType(r.URL.Query().Get("link_type")),
	}
	page, err := h.linkService.List(r.Context(), filter, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list links", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// Create handles POST /api/links
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLinkInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	link, err := h.linkService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to create link", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, link)
}

// Get handles GET /api/links/{id}
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "link", h.logger)
	if !ok {
		return
	}
	link, err := h.linkService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get link", err)
		return
	}
	respond(w, h.logger, http.StatusOK, link)
}

// Update handles PUT /api/links/{id}
func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "link", h.logger)
	if !ok {
		return
	}
	var req models.UpdateLinkInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	link, err := h.linkService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update link", err)
		return
	}
	respond(w, h.logger, http.StatusOK, link)
}

// Delete handles DELETE /api/links/{id}
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "link", h.logger)
	if !ok {
		return
	}
	if err := h.linkService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to delete link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify handles POST /api/links/{id}/verify
func (h *LinkHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "link", h.logger)
	if !ok {
		return
	}
	link, err := h.linkService.Verify(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to verify link", err)
		return
	}
	respond(w, h.logger, http.StatusOK, link)
}

// ============================================================================
// Attachments
// ============================================================================

func (h *LinkHandler) linksFor(kind models.LinkParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, string(kind), h.logger)
		if !ok {
			return
		}
		links, err := h.linkService.LinksFor(r.Context(), kind, parentID)
		if err != nil {
			writeServiceError(w, h.logger, "Failed to list links for "+string(kind), err)
			return
		}
		respond(w, h.logger, http.StatusOK, links)
	}
}

func (h *LinkHandler) attach(kind models.LinkParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, string(kind), h.logger)
		if !ok {
			return
		}
		var req AttachRequest
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		att, err := h.linkService.Attach(r.Context(), models.AttachLinkInput{
			ParentKind:   kind,
			ParentID:     parentID,
			LinkID:       req.LinkID,
			DisplayOrder: req.DisplayOrder,
			Notes:        req.Notes,
		})
		if err != nil {
			writeServiceError(w, h.logger, "Failed to attach link", err)
			return
		}
		respond(w, h.logger, http.StatusOK, att)
	}
}

func (h *LinkHandler) reorder(kind models.LinkParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, string(kind), h.logger)
		if !ok {
			return
		}
		linkID, ok := parseUUID(w, r, paramLinkID, "link", h.logger)
		if !ok {
			return
		}
		var req ReorderRequest
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		if req.DisplayOrder == nil {
			writeServiceError(w, h.logger, "Failed to reorder link", apperrors.Validation("display_order is required"))
			return
		}
		att, err := h.linkService.Reorder(r.Context(), models.ReorderLinkInput{
			ParentKind:   kind,
			ParentID:     parentID,
			LinkID:       linkID,
			DisplayOrder: *req.DisplayOrder,
		})
		if err != nil {
			writeServiceError(w, h.logger, "Failed to reorder link", err)
			return
		}
		respond(w, h.logger, http.StatusOK, att)
	}
}

func (h *LinkHandler) detach(kind models.LinkParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, string(kind), h.logger)
		if !ok {
			return
		}
		linkID, ok := parseUUID(w, r, paramLinkID, "link", h.logger)
		if !ok {
			return
		}
		if err := h.linkService.Detach(r.Context(), kind, parentID, linkID); err != nil {
			writeServiceError(w, h.logger, "Failed to detach link", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// BulkAttach handles POST /api/links/bulk-attach. The batch is atomic.
func (h *LinkHandler) BulkAttach(w http.ResponseWriter, r *http.Request) {
	var req BulkAttachRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	atts, err := h.linkService.BulkAttach(r.Context(), req.Items)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to bulk attach links", err)
		return
	}
	respond(w, h.logger, http.StatusOK, atts)
}

// ReorderAll handles PUT /api/links/reorder. The batch is atomic.
func (h *LinkHandler) ReorderAll(w http.ResponseWriter, r *http.Request) {
	var req ReorderAllRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	atts, err := h.linkService.ReorderAll(r.Context(), req.Items)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to reorder links", err)
		return
	}
	respond(w, h.logger, http.StatusOK, atts)
}

// ============================================================================
// Maintenance
// ============================================================================

// Usage handles GET /api/links/usage[?link_id=]
func (h *LinkHandler) Usage(w http.ResponseWriter, r *http.Request) {
	var linkID *uuid.UUID
	if raw := r.URL.Query().Get("link_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "invalid_link_id", "Invalid link ID format")
			return
		}
		linkID = &id
	}
	stats, err := h.linkService.UsageStats(r.Context(), linkID)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to compute link usage", err)
		return
	}
	respond(w, h.logger, http.StatusOK, stats)
}

// Orphaned handles GET /api/links/orphaned
func (h *LinkHandler) Orphaned(w http.ResponseWriter, r *http.Request) {
	links, err := h.linkService.Orphaned(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list orphaned links", err)
		return
	}
	respond(w, h.logger, http.StatusOK, links)
}

// NeedsVerification handles GET /api/links/needs-verification
func (h *LinkHandler) NeedsVerification(w http.ResponseWriter, r *http.Request) {
	links, err := h.linkService.NeedingVerification(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list links needing verification", err)
		return
	}
	respond(w, h.logger, http.StatusOK, links)
}
