package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

func TestSequenceHandler_CreateFromBody(t *testing.T) {
	svc := &mockSequenceService{}
	groupID := uuid.New()

	rec := do(t, newMux(NewSequenceHandler(svc, nopLogger)), http.MethodPost, "/api/sequences",
		map[string]any{"practice_group_id": groupID, "name": "New matter intake"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, groupID, svc.createGroup)

	var seq models.ActionSequence
	decodeEnvelope(t, rec, &seq)
	assert.Equal(t, "New matter intake", seq.Name)
}

func TestSequenceHandler_CreateRequiresPracticeGroup(t *testing.T) {
	rec := do(t, newMux(NewSequenceHandler(&mockSequenceService{}, nopLogger)), http.MethodPost, "/api/sequences",
		map[string]any{"name": "Intake"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeEnvelope(t, rec, nil).Error)
}

func TestSequenceHandler_CreateUnderPracticeGroup(t *testing.T) {
	svc := &mockSequenceService{}
	groupID := uuid.New()

	rec := do(t, newMux(NewSequenceHandler(svc, nopLogger)), http.MethodPost,
		"/api/practice-groups/"+groupID.String()+"/sequences", models.CreateSequenceInput{Name: "Intake"})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, groupID, svc.createGroup)
}

func TestSequenceHandler_AddActionConflict(t *testing.T) {
	svc := &mockSequenceService{err: apperrors.Conflict("order number is already used in this sequence")}

	rec := do(t, newMux(NewSequenceHandler(svc, nopLogger)), http.MethodPost,
		"/api/sequences/"+uuid.NewString()+"/actions",
		models.AddSequenceActionInput{ActionID: uuid.New(), OrderNumber: 1})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, svc.addIn.OrderNumber)
	assert.Contains(t, decodeEnvelope(t, rec, nil).Message, "order number is already used")
}

func TestSequenceHandler_GetIncludesSteps(t *testing.T) {
	rec := do(t, newMux(NewSequenceHandler(&mockSequenceService{}, nopLogger)), http.MethodGet, "/api/sequences/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"steps":[]`)
}
