package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
)

// BulkLinkTasksRequest for POST /api/roles/{id}/tasks/bulk
type BulkLinkTasksRequest struct {
	Items []models.LinkTaskInput `json:"items"`
}

// BulkLinkActionsRequest for POST /api/tasks/{id}/actions/bulk
type BulkLinkActionsRequest struct {
	Items []models.LinkActionInput `json:"items"`
}

// ReorderRequest for PUT /api/roles/{id}/tasks/{taskId}/order and
// PUT /api/tasks/{id}/actions/{actionId}/order
type ReorderRequest struct {
	DisplayOrder *int `json:"display_order"`
}

// NavigationHandler serves roles, tasks and the junctions between them and actions.
type NavigationHandler struct {
	navigationService services.NavigationService
	logger            *zap.Logger
}

// NewNavigationHandler creates a new navigation handler.
func NewNavigationHandler(navigationService services.NavigationService, logger *zap.Logger) *NavigationHandler {
	return &NavigationHandler{
		navigationService: navigationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the navigation handler's routes on the given mux.
func (h *NavigationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware Authenticator, scopeMiddleware ScopeMiddleware) {
	protect := guard(authMiddleware, scopeMiddleware)

	mux.HandleFunc("GET /api/roles", protect(h.ListRoles))
	mux.HandleFunc("POST /api/roles", protect(h.CreateRole))
	mux.HandleFunc("GET /api/roles/{id}", protect(h.GetRole))
	mux.HandleFunc("PUT /api/roles/{id}", protect(h.UpdateRole))
	mux.HandleFunc("DELETE /api/roles/{id}", protect(h.DeleteRole))
	mux.HandleFunc("GET /api/roles/{id}/tasks", protect(h.TasksForRole))
	mux.HandleFunc("POST /api/roles/{id}/tasks", protect(h.LinkTask))
	mux.HandleFunc("POST /api/roles/{id}/tasks/bulk", protect(h.LinkTasks))
	mux.HandleFunc("DELETE /api/roles/{id}/tasks/{taskId}", protect(h.UnlinkTask))
	mux.HandleFunc("PUT /api/roles/{id}/tasks/{taskId}/order", protect(h.ReorderTask))

	mux.HandleFunc("GET /api/tasks", protect(h.ListTasks))
	mux.HandleFunc("POST /api/tasks", protect(h.CreateTask))
	mux.HandleFunc("GET /api/tasks/{id}", protect(h.GetTask))
	mux.HandleFunc("PUT /api/tasks/{id}", protect(h.UpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", protect(h.DeleteTask))
	mux.HandleFunc("GET /api/tasks/{id}/roles", protect(h.RolesForTask))
	mux.HandleFunc("GET /api/tasks/{id}/actions", protect(h.ActionsForTask))
	mux.HandleFunc("POST /api/tasks/{id}/actions", protect(h.LinkAction))
	mux.HandleFunc("POST /api/tasks/{id}/actions/bulk", protect(h.LinkActions))
	mux.HandleFunc("PUT /api/tasks/{id}/actions/{actionId}", protect(h.UpdateTaskAction))
	mux.HandleFunc("PUT /api/tasks/{id}/actions/{actionId}/order", protect(h.ReorderAction))
	mux.HandleFunc("DELETE /api/tasks/{id}/actions/{actionId}", protect(h.UnlinkAction))

	mux.HandleFunc("GET /api/actions/{id}/tasks", protect(h.TasksForAction))
}

// ============================================================================
// Roles
// ============================================================================

// ListRoles handles GET /api/roles. Only the caller's roles are returned.
func (h *NavigationHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.navigationService.ListRoles(r.Context(), opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list roles", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// CreateRole handles POST /api/roles
func (h *NavigationHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGraphNodeInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	role, err := h.navigationService.CreateRole(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to create role", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, role)
}

// GetRole handles GET /api/roles/{id}
func (h *NavigationHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	role, err := h.navigationService.GetRole(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get role", err)
		return
	}
	respond(w, h.logger, http.StatusOK, role)
}

// UpdateRole handles PUT /api/roles/{id}
func (h *NavigationHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	var req models.UpdateGraphNodeInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	role, err := h.navigationService.UpdateRole(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update role", err)
		return
	}
	respond(w, h.logger, http.StatusOK, role)
}

// DeleteRole handles DELETE /api/roles/{id}
func (h *NavigationHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	if err := h.navigationService.DeleteRole(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TasksForRole handles GET /api/roles/{id}/tasks
func (h *NavigationHandler) TasksForRole(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.navigationService.TasksForRole(r.Context(), id, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list tasks for role", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// LinkTask handles POST /api/roles/{id}/tasks
func (h *NavigationHandler) LinkTask(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	var req models.LinkTaskInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	link, err := h.navigationService.LinkTaskToRole(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to link task to role", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, link)
}

// LinkTasks handles POST /api/roles/{id}/tasks/bulk. Either every task is
// linked or none is.
func (h *NavigationHandler) LinkTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	var req BulkLinkTasksRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	links, err := h.navigationService.LinkTasksToRole(r.Context(), id, req.Items)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to link tasks to role", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, links)
}

// UnlinkTask handles DELETE /api/roles/{id}/tasks/{taskId}
func (h *NavigationHandler) UnlinkTask(w http.ResponseWriter, r *http.Request) {
	roleID, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	taskID, ok := parseUUID(w, r, paramTaskID, "task", h.logger)
	if !ok {
		return
	}
	if err := h.navigationService.UnlinkTaskFromRole(r.Context(), roleID, taskID); err != nil {
		writeServiceError(w, h.logger, "Failed to unlink task from role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderTask handles PUT /api/roles/{id}/tasks/{taskId}/order
func (h *NavigationHandler) ReorderTask(w http.ResponseWriter, r *http.Request) {
	roleID, ok := ParseID(w, r, "role", h.logger)
	if !ok {
		return
	}
	taskID, ok := parseUUID(w, r, paramTaskID, "task", h.logger)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.DisplayOrder == nil {
		writeServiceError(w, h.logger, "Failed to reorder task", apperrors.Validation("display_order is required"))
		return
	}
	link, err := h.navigationService.ReorderTaskInRole(r.Context(), roleID, taskID, *req.DisplayOrder)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to reorder task", err)
		return
	}
	respond(w, h.logger, http.StatusOK, link)
}

// ============================================================================
// Tasks
// ============================================================================

// ListTasks handles GET /api/tasks. Only the caller's tasks are returned.
func (h *NavigationHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.navigationService.ListTasks(r.Context(), opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list tasks", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// CreateTask handles POST /api/tasks
func (h *NavigationHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGraphNodeInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	task, err := h.navigationService.CreateTask(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to create task", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, task)
}

// GetTask handles GET /api/tasks/{id}
func (h *NavigationHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	task, err := h.navigationService.GetTask(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get task", err)
		return
	}
	respond(w, h.logger, http.StatusOK, task)
}

// UpdateTask handles PUT /api/tasks/{id}
func (h *NavigationHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	var req models.UpdateGraphNodeInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	task, err := h.navigationService.UpdateTask(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update task", err)
		return
	}
	respond(w, h.logger, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}
func (h *NavigationHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	if err := h.navigationService.DeleteTask(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RolesForTask handles GET /api/tasks/{id}/roles
func (h *NavigationHandler) RolesForTask(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.navigationService.RolesForTask(r.Context(), id, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list roles for task", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// ActionsForTask handles GET /api/tasks/{id}/actions
func (h *NavigationHandler) ActionsForTask(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.navigationService.ActionsForTask(r.Context(), id, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list actions for task", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// LinkAction handles POST /api/tasks/{id}/actions
func (h *NavigationHandler) LinkAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	var req models.LinkActionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	link, err := h.navigationService.LinkActionToTask(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to link action to task", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, link)
}

// LinkActions handles POST /api/tasks/{id}/actions/bulk
func (h *NavigationHandler) LinkActions(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	var req BulkLinkActionsRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	links, err := h.navigationService.LinkActionsToTask(r.Context(), id, req.Items)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to link actions to task", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, links)
}

// UpdateTaskAction handles PUT /api/tasks/{id}/actions/{actionId}
func (h *NavigationHandler) UpdateTaskAction(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	actionID, ok := parseUUID(w, r, paramActionID, "action", h.logger)
	if !ok {
		return
	}
	var req models.UpdateTaskActionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	link, err := h.navigationService.UpdateTaskAction(r.Context(), taskID, actionID, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update task action", err)
		return
	}
	respond(w, h.logger, http.StatusOK, link)
}

// ReorderAction handles PUT /api/tasks/{id}/actions/{actionId}/order.
// It moves one action within the task and leaves its note alone.
func (h *NavigationHandler) ReorderAction(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	actionID, ok := parseUUID(w, r, paramActionID, "action", h.logger)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.DisplayOrder == nil {
		writeServiceError(w, h.logger, "Failed to reorder action", apperrors.Validation("display_order is required"))
		return
	}
	link, err := h.navigationService.UpdateTaskAction(r.Context(), taskID, actionID,
		models.UpdateTaskActionInput{DisplayOrder: req.DisplayOrder})
	if err != nil {
		writeServiceError(w, h.logger, "Failed to reorder action", err)
		return
	}
	respond(w, h.logger, http.StatusOK, link)
}

// UnlinkAction handles DELETE /api/tasks/{id}/actions/{actionId}
func (h *NavigationHandler) UnlinkAction(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseID(w, r, "task", h.logger)
	if !ok {
		return
	}
	actionID, ok := parseUUID(w, r, paramActionID, "action", h.logger)
	if !ok {
		return
	}
	if err := h.navigationService.UnlinkActionFromTask(r.Context(), taskID, actionID); err != nil {
		writeServiceError(w, h.logger, "Failed to unlink action from task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TasksForAction handles GET /api/actions/{id}/tasks
func (h *NavigationHandler) TasksForAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "action", h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.navigationService.TasksForAction(r.Context(), id, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list tasks for action", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}
