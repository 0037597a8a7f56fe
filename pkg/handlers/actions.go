package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
)

// ActionHandler serves actions and their screenshots.
type ActionHandler struct {
	actionService services.ActionService
	logger        *zap.Logger
}

// NewActionHandler creates a new action handler.
func NewActionHandler(actionService services.ActionService, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{
		actionService: actionService,
		logger:        logger,
	}
}

// RegisterRoutes registers the action handler's routes on the given mux.
func (h *ActionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware Authenticator, scopeMiddleware ScopeMiddleware) {
	protect := guard(authMiddleware, scopeMiddleware)

	for segment, kind := range map[string]models.ActionParentKind{
		"systems":         models.ActionParentSystem,
		"practice-groups": models.ActionParentPracticeGroup,
	} {
		mux.HandleFunc("GET /api/"+segment+"/{id}/actions", protect(h.listByParent(kind)))
		mux.HandleFunc("POST /api/"+segment+"/{id}/actions", protect(h.createUnder(kind)))
	}

	mux.HandleFunc("POST /api/actions", protect(h.Create))
	mux.HandleFunc("GET /api/actions/{id}", protect(h.Get))
	mux.HandleFunc("PUT /api/actions/{id}", protect(h.Update))
	mux.HandleFunc("DELETE /api/actions/{id}", protect(h.Delete))
	mux.HandleFunc("GET /api/actions/{id}/paths", protect(h.Paths))

	mux.HandleFunc("GET /api/actions/{id}/screenshots", protect(h.ListScreenshots))
	mux.HandleFunc("POST /api/actions/{id}/screenshots", protect(h.AddScreenshot))
	mux.HandleFunc("DELETE /api/screenshots/{id}", protect(h.RemoveScreenshot))
}

// Create handles POST /api/actions. The body names the parent through
// system_id or practice_group_id.
func (h *ActionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateActionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	h.create(w, r, req)
}

func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request, req models.CreateActionInput) {
	action, err := h.actionService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to create action", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, action)
}

func (h *ActionHandler) createUnder(kind models.ActionParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, string(kind), h.logger)
		if !ok {
			return
		}
		var req models.CreateActionInput
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		if kind == models.ActionParentSystem {
			req.SystemID = uuidPtr(parentID)
		} else {
			req.PracticeGroupID = uuidPtr(parentID)
		}
		h.create(w, r, req)
	}
}

func (h *ActionHandler) listByParent(kind models.ActionParentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, string(kind), h.logger)
		if !ok {
			return
		}
		opts, ok := ParseListOptions(w, r, h.logger)
		if !ok {
			return
		}
		page, err := h.actionService.ListByParent(r.Context(), kind, parentID, opts)
		if err != nil {
			writeServiceError(w, h.logger, "Failed to list actions", err)
			return
		}
		respond(w, h.logger, http.StatusOK, page)
	}
}

// Get handles GET /api/actions/{id}
func (h *ActionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	action, err := h.actionService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get action", err)
		return
	}
	respond(w, h.logger, http.StatusOK, action)
}

// Update handles PUT /api/actions/{id}
func (h *ActionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	var req models.UpdateActionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	action, err := h.actionService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update action", err)
		return
	}
	respond(w, h.logger, http.StatusOK, action)
}

// Delete handles DELETE /api/actions/{id}
func (h *ActionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	if err := h.actionService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to delete action", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Paths handles GET /api/actions/{id}/paths: every way a reader can reach
// the action (hierarchy chain, tasks with their roles, sequences).
func (h *ActionHandler) Paths(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	paths, err := h.actionService.GetPaths(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to resolve action paths", err)
		return
	}
	respond(w, h.logger, http.StatusOK, paths)
}

// ListScreenshots handles GET /api/actions/{id}/screenshots
func (h *ActionHandler) ListScreenshots(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	shots, err := h.actionService.ListScreenshots(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list screenshots", err)
		return
	}
	respond(w, h.logger, http.StatusOK, shots)
}

// AddScreenshot handles POST /api/actions/{id}/screenshots
func (h *ActionHandler) AddScreenshot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	var req models.AddScreenshotInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	shot, err := h.actionService.AddScreenshot(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to add screenshot", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, shot)
}

// RemoveScreenshot handles DELETE /api/screenshots/{id}
func (h *ActionHandler) RemoveScreenshot(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "screenshot", h.logger)
	if !ok {
		return
	}
	if err := h.actionService.RemoveScreenshot(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to remove screenshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
