package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
)

// HierarchyHandler serves systems, departments and practice groups.
type HierarchyHandler struct {
	hierarchyService services.HierarchyService
	logger           *zap.Logger
}

// NewHierarchyHandler creates a new hierarchy handler.
func NewHierarchyHandler(hierarchyService services.HierarchyService, logger *zap.Logger) *HierarchyHandler {
	return &HierarchyHandler{
		hierarchyService: hierarchyService,
		logger:           logger,
	}
}

// levelRoute is the URL segment serving one hierarchy level.
type levelRoute struct {
	level    models.HierarchyLevel
	segment  string // collection segment of the level itself
	children string // collection segment of the child level, "" for leaves
}

var levelRoutes = []levelRoute{
	{models.LevelSystem, "systems", "departments"},
	{models.LevelDepartment, "departments", "practice-groups"},
	{models.LevelPracticeGroup, "practice-groups", ""},
}

// RegisterRoutes registers the hierarchy handler's routes on the given mux.
func (h *HierarchyHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware Authenticator, scopeMiddleware ScopeMiddleware) {
	protect := guard(authMiddleware, scopeMiddleware)

	mux.HandleFunc("GET /api/systems", protect(h.listRoots))
	mux.HandleFunc("POST /api/systems", protect(h.createRoot))
	mux.HandleFunc("GET /api/systems/{id}/tree", protect(h.Tree))

	for i, lr := range levelRoutes {
		item := "/api/" + lr.segment + "/{id}"
		mux.HandleFunc("GET "+item, protect(h.get(lr.level)))
		mux.HandleFunc("PUT "+item, protect(h.update(lr.level)))
		mux.HandleFunc("DELETE "+item, protect(h.remove(lr.level)))

		if lr.children != "" {
			child := levelRoutes[i+1].level
			mux.HandleFunc("GET "+item+"/"+lr.children, protect(h.listChildren(lr.level, child)))
			mux.HandleFunc("POST "+item+"/"+lr.children, protect(h.createChild(lr.level, child)))
		}
	}
}

// label is the word used for a level in error codes and messages.
func label(level models.HierarchyLevel) string {
	return string(level)
}

// listRoots handles GET /api/systems
func (h *HierarchyHandler) listRoots(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.hierarchyService.ListChildren(r.Context(), models.LevelSystem, nil, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list systems", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// createRoot handles POST /api/systems
func (h *HierarchyHandler) createRoot(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNodeInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	node, err := h.hierarchyService.Create(r.Context(), models.LevelSystem, nil, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to create system", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, node)
}

// Tree handles GET /api/systems/{id}/tree
func (h *HierarchyHandler) Tree(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "system", h.logger)
	if !ok {
		return
	}
	tree, err := h.hierarchyService.GetTree(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to load system tree", err)
		return
	}
	respond(w, h.logger, http.StatusOK, tree)
}

func (h *HierarchyHandler) get(level models.HierarchyLevel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ParseID(w, r, label(level), h.logger)
		if !ok {
			return
		}
		node, err := h.hierarchyService.Get(r.Context(), level, id)
		if err != nil {
			writeServiceError(w, h.logger, "Failed to get "+label(level), err)
			return
		}
		respond(w, h.logger, http.StatusOK, node)
	}
}

func (h *HierarchyHandler) update(level models.HierarchyLevel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ParseID(w, r, label(level), h.logger)
		if !ok {
			return
		}
		var req models.UpdateNodeInput
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		node, err := h.hierarchyService.Update(r.Context(), level, id, req)
		if err != nil {
			writeServiceError(w, h.logger, "Failed to update "+label(level), err)
			return
		}
		respond(w, h.logger, http.StatusOK, node)
	}
}

func (h *HierarchyHandler) remove(level models.HierarchyLevel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ParseID(w, r, label(level), h.logger)
		if !ok {
			return
		}
		if err := h.hierarchyService.Delete(r.Context(), level, id); err != nil {
			writeServiceError(w, h.logger, "Failed to delete "+label(level), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *HierarchyHandler) listChildren(parent, child models.HierarchyLevel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, label(parent), h.logger)
		if !ok {
			return
		}
		opts, ok := ParseListOptions(w, r, h.logger)
		if !ok {
			return
		}
		page, err := h.hierarchyService.ListChildren(r.Context(), child, &parentID, opts)
		if err != nil {
			writeServiceError(w, h.logger, "Failed to list "+label(child), err)
			return
		}
		respond(w, h.logger, http.StatusOK, page)
	}
}

func (h *HierarchyHandler) createChild(parent, child models.HierarchyLevel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := ParseID(w, r, label(parent), h.logger)
		if !ok {
			return
		}
		var req models.CreateNodeInput
		if !decodeBody(w, r, &req, h.logger) {
			return
		}
		node, err := h.hierarchyService.Create(r.Context(), child, uuidPtr(parentID), req)
		if err != nil {
			writeServiceError(w, h.logger, "Failed to create "+label(child), err)
			return
		}
		respond(w, h.logger, http.StatusCreated, node)
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
