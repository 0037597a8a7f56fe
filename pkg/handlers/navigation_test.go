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

func TestNavigationHandler_ListRolesAsCaller(t *testing.T) {
	svc := &mockNavigationService{}
	rec := do(t, newMux(NewNavigationHandler(svc, nopLogger)), http.MethodGet, "/api/roles?orderBy=name&orderDirection=asc", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", svc.listSubject)
	assert.Equal(t, "name", svc.listOpts.OrderBy)
}

func TestNavigationHandler_LinkTaskDuplicate(t *testing.T) {
	svc := &mockNavigationService{err: apperrors.Conflict("task is already linked to this role")}

	rec := do(t, newMux(NewNavigationHandler(svc, nopLogger)), http.MethodPost,
		"/api/roles/"+uuid.NewString()+"/tasks", models.LinkTaskInput{TaskID: uuid.New()})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeEnvelope(t, rec, nil).Error)
}

func TestNavigationHandler_LinkTaskMissingRole(t *testing.T) {
	roleID := uuid.New()
	svc := &mockNavigationService{err: apperrors.NotFound("role", roleID)}

	rec := do(t, newMux(NewNavigationHandler(svc, nopLogger)), http.MethodPost,
		"/api/roles/"+roleID.String()+"/tasks", models.LinkTaskInput{TaskID: uuid.New()})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "role not found: "+roleID.String(), decodeEnvelope(t, rec, nil).Message)
}

func TestNavigationHandler_BulkLinkTasks(t *testing.T) {
	svc := &mockNavigationService{}
	items := []models.LinkTaskInput{{TaskID: uuid.New()}, {TaskID: uuid.New(), DisplayOrder: 1}}

	rec := do(t, newMux(NewNavigationHandler(svc, nopLogger)), http.MethodPost,
		"/api/roles/"+uuid.NewString()+"/tasks/bulk", BulkLinkTasksRequest{Items: items})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, items, svc.bulkTasks)

	var links []*models.RoleTask
	decodeEnvelope(t, rec, &links)
	assert.Len(t, links, 2)
}

func TestNavigationHandler_ReorderTask(t *testing.T) {
	svc := &mockNavigationService{}
	mux := newMux(NewNavigationHandler(svc, nopLogger))
	path := "/api/roles/" + uuid.NewString() + "/tasks/" + uuid.NewString() + "/order"

	rec := do(t, mux, http.MethodPut, path, map[string]int{"display_order": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.reorderOrder)

	rec = do(t, mux, http.MethodPut, path, map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "display_order is required")
}

func TestNavigationHandler_ReorderAction(t *testing.T) {
	svc := &mockNavigationService{}
	mux := newMux(NewNavigationHandler(svc, nopLogger))
	path := "/api/tasks/" + uuid.NewString() + "/actions/" + uuid.NewString() + "/order"

	rec := do(t, mux, http.MethodPut, path, map[string]int{"display_order": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.taskActionIn.DisplayOrder)
	assert.Equal(t, 3, *svc.taskActionIn.DisplayOrder)
	assert.Nil(t, svc.taskActionIn.Notes, "reorder never touches the note")

	var link models.TaskAction
	decodeEnvelope(t, rec, &link)
	assert.Equal(t, 3, link.DisplayOrder)

	rec = do(t, mux, http.MethodPut, path, map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "display_order is required")
}

func TestNavigationHandler_ReorderActionMissingTask(t *testing.T) {
	taskID := uuid.New()
	svc := &mockNavigationService{err: apperrors.NotFound("task", taskID)}

	rec := do(t, newMux(NewNavigationHandler(svc, nopLogger)), http.MethodPut,
		"/api/tasks/"+taskID.String()+"/actions/"+uuid.NewString()+"/order", map[string]int{"display_order": 1})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "task not found: "+taskID.String(), decodeEnvelope(t, rec, nil).Message)
}

func TestNavigationHandler_UnlinkActionBadID(t *testing.T) {
	rec := do(t, newMux(NewNavigationHandler(&mockNavigationService{}, nopLogger)), http.MethodDelete,
		"/api/tasks/"+uuid.NewString()+"/actions/zzz", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_action_id", decodeEnvelope(t, rec, nil).Error)
}

func TestNavigationHandler_UnlinkAction(t *testing.T) {
	rec := do(t, newMux(NewNavigationHandler(&mockNavigationService{}, nopLogger)), http.MethodDelete,
		"/api/tasks/"+uuid.NewString()+"/actions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
