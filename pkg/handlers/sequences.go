package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
)

// CreateSequenceRequest for POST /api/sequences
type CreateSequenceRequest struct {
	PracticeGroupID uuid.UUID `json:"practice_group_id"`
	models.CreateSequenceInput
}

// SequenceHandler serves ordered action sequences.
type SequenceHandler struct {
	sequenceService services.SequenceService
	logger          *zap.Logger
}

// NewSequenceHandler creates a new sequence handler.
func NewSequenceHandler(sequenceService services.SequenceService, logger *zap.Logger) *SequenceHandler {
	return &SequenceHandler{
		sequenceService: sequenceService,
		logger:          logger,
	}
}

// RegisterRoutes registers the sequence handler's routes on the given mux.
func (h *SequenceHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware Authenticator, scopeMiddleware ScopeMiddleware) {
	protect := guard(authMiddleware, scopeMiddleware)

	mux.HandleFunc("GET /api/practice-groups/{id}/sequences", protect(h.List))
	mux.HandleFunc("POST /api/practice-groups/{id}/sequences", protect(h.CreateUnder))
	mux.HandleFunc("POST /api/sequences", protect(h.Create))
	mux.HandleFunc("GET /api/sequences/{id}", protect(h.Get))
	mux.HandleFunc("PUT /api/sequences/{id}", protect(h.Update))
	mux.HandleFunc("DELETE /api/sequences/{id}", protect(h.Delete))
	mux.HandleFunc("POST /api/sequences/{id}/actions", protect(h.AddAction))
	mux.HandleFunc("PUT /api/sequence-actions/{id}", protect(h.UpdateStep))
	mux.HandleFunc("DELETE /api/sequence-actions/{id}", protect(h.RemoveStep))
}

// List handles GET /api/practice-groups/{id}/sequences
func (h *SequenceHandler) List(w http.ResponseWriter, r *http.Request) {
	groupID, ok := ParseID(w, r, "practice_group", h.logger)
	if !ok {
		return
	}
	opts, ok := ParseListOptions(w, r, h.logger)
	if !ok {
		return
	}
	page, err := h.sequenceService.List(r.Context(), groupID, opts)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list sequences", err)
		return
	}
	respond(w, h.logger, http.StatusOK, page)
}

// CreateUnder handles POST /api/practice-groups/{id}/sequences
func (h *SequenceHandler) CreateUnder(w http.ResponseWriter, r *http.Request) {
	groupID, ok := ParseID(w, r, "practice_group", h.logger)
	if !ok {
		return
	}
	var req models.CreateSequenceInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	h.create(w, r, groupID, req)
}

// Create handles POST /api/sequences
func (h *SequenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSequenceRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.PracticeGroupID == uuid.Nil {
		writeServiceError(w, h.logger, "Failed to create sequence", apperrors.Validation("practice_group_id is required"))
		return
	}
	h.create(w, r, req.PracticeGroupID, req.CreateSequenceInput)
}

func (h *SequenceHandler) create(w http.ResponseWriter, r *http.Request, groupID uuid.UUID, in models.CreateSequenceInput) {
	seq, err := h.sequenceService.Create(r.Context(), groupID, in)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to create sequence", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, seq)
}

// Get handles GET /api/sequences/{id}. The response includes the steps in order.
func (h *SequenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "sequence", h.logger)
	if !ok {
		return
	}
	seq, err := h.sequenceService.GetWithActions(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to get sequence", err)
		return
	}
	respond(w, h.logger, http.StatusOK, seq)
}

// Update handles PUT /api/sequences/{id}
func (h *SequenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "sequence", h.logger)
	if !ok {
		return
	}
	var req models.UpdateSequenceInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	seq, err := h.sequenceService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update sequence", err)
		return
	}
	respond(w, h.logger, http.StatusOK, seq)
}

// Delete handles DELETE /api/sequences/{id}
func (h *SequenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "sequence", h.logger)
	if !ok {
		return
	}
	if err := h.sequenceService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to delete sequence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAction handles POST /api/sequences/{id}/actions
func (h *SequenceHandler) AddAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "sequence", h.logger)
	if !ok {
		return
	}
	var req models.AddSequenceActionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	step, err := h.sequenceService.AddAction(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to add action to sequence", err)
		return
	}
	respond(w, h.logger, http.StatusCreated, step)
}

// UpdateStep handles PUT /api/sequence-actions/{id}
func (h *SequenceHandler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "sequence_action", h.logger)
	if !ok {
		return
	}
	var req models.UpdateSequenceActionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	step, err := h.sequenceService.UpdateSequenceAction(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.logger, "Failed to update sequence step", err)
		return
	}
	respond(w, h.logger, http.StatusOK, step)
}

// RemoveStep handles DELETE /api/sequence-actions/{id}
func (h *SequenceHandler) RemoveStep(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "sequence_action", h.logger)
	if !ok {
		return
	}
	if err := h.sequenceService.RemoveSequenceAction(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "Failed to remove sequence step", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
