package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/services"
)

// ============================================================================
// Middleware fakes
// ============================================================================

// fakeAuth authenticates every request as subject unless reject is set.
type fakeAuth struct {
	subject string
	reject  bool
}

func (f fakeAuth) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.reject {
			_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		ctx := models.WithActor(r.Context(), models.Actor{Subject: f.subject, Source: models.ActorSourceAPI})
		next(w, r.WithContext(ctx))
	}
}

func passthroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

type routeRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authMiddleware Authenticator, scopeMiddleware ScopeMiddleware)
}

func newMux(h routeRegistrar) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, fakeAuth{subject: "user-1"}, passthroughScope)
	return mux
}

// do sends a request through mux. body is JSON-encoded unless it is a string.
func do(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope decodes an ApiResponse, unmarshalling Data into data when non-nil.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) ApiResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return ApiResponse{Success: raw.Success, Error: raw.Error, Message: raw.Message}
}

var nopLogger = zap.NewNop()

// ============================================================================
// Service mocks
// ============================================================================
// Each mock embeds its interface so tests only implement what they call.

type mockHierarchyService struct {
	services.HierarchyService

	createLevel  models.HierarchyLevel
	createParent *uuid.UUID
	createIn     models.CreateNodeInput
	listOpts     models.ListOptions
	node         *models.HierarchyNode
	tree         *models.SystemTree
	err          error
}

func (m *mockHierarchyService) Create(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, in models.CreateNodeInput) (*models.HierarchyNode, error) {
	m.createLevel, m.createParent, m.createIn = level, parentID, in
	if m.err != nil {
		return nil, m.err
	}
	return &models.HierarchyNode{ID: uuid.New(), Level: level, ParentID: parentID, Name: in.Name}, nil
}

func (m *mockHierarchyService) Get(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (*models.HierarchyNode, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.node, nil
}

func (m *mockHierarchyService) Delete(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) error {
	return m.err
}

func (m *mockHierarchyService) ListChildren(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, opts models.ListOptions) (*models.Page[*models.HierarchyNode], error) {
	m.listOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]*models.HierarchyNode{}, 0, opts.Bounded()), nil
}

func (m *mockHierarchyService) GetTree(ctx context.Context, systemID uuid.UUID) (*models.SystemTree, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tree, nil
}

type mockActionService struct {
	services.ActionService

	createIn models.CreateActionInput
	listKind models.ActionParentKind
	paths    *models.ActionPaths
	err      error
}

func (m *mockActionService) Create(ctx context.Context, in models.CreateActionInput) (*models.Action, error) {
	m.createIn = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.Action{ID: uuid.New(), Title: in.Title, SystemID: in.SystemID, PracticeGroupID: in.PracticeGroupID}, nil
}

func (m *mockActionService) ListByParent(ctx context.Context, kind models.ActionParentKind, parentID uuid.UUID, opts models.ListOptions) (*models.Page[*models.Action], error) {
	m.listKind = kind
	return models.NewPage([]*models.Action{}, 0, opts.Bounded()), m.err
}

func (m *mockActionService) GetPaths(ctx context.Context, id uuid.UUID) (*models.ActionPaths, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.paths, nil
}

func (m *mockActionService) RemoveScreenshot(ctx context.Context, id uuid.UUID) error {
	return m.err
}

type mockSequenceService struct {
	services.SequenceService

	createGroup uuid.UUID
	addIn       models.AddSequenceActionInput
	err         error
}

func (m *mockSequenceService) Create(ctx context.Context, practiceGroupID uuid.UUID, in models.CreateSequenceInput) (*models.ActionSequence, error) {
	m.createGroup = practiceGroupID
	if m.err != nil {
		return nil, m.err
	}
	return &models.ActionSequence{ID: uuid.New(), PracticeGroupID: practiceGroupID, Name: in.Name}, nil
}

func (m *mockSequenceService) AddAction(ctx context.Context, sequenceID uuid.UUID, in models.AddSequenceActionInput) (*models.SequenceAction, error) {
	m.addIn = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.SequenceAction{ID: uuid.New(), SequenceID: sequenceID, ActionID: in.ActionID, OrderNumber: in.OrderNumber}, nil
}

func (m *mockSequenceService) GetWithActions(ctx context.Context, id uuid.UUID) (*models.SequenceWithActions, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.SequenceWithActions{ActionSequence: models.ActionSequence{ID: id}, Steps: []*models.SequenceStep{}}, nil
}

type mockNavigationService struct {
	services.NavigationService

	listOpts     models.ListOptions
	listSubject  string
	bulkTasks    []models.LinkTaskInput
	reorderOrder int
	taskActionIn models.UpdateTaskActionInput
	err          error
}

func (m *mockNavigationService) ListRoles(ctx context.Context, opts models.ListOptions) (*models.Page[*models.Role], error) {
	m.listOpts = opts
	if actor, ok := models.GetActor(ctx); ok {
		m.listSubject = actor.Subject
	}
	return models.NewPage([]*models.Role{}, 0, opts.Bounded()), m.err
}

func (m *mockNavigationService) LinkTaskToRole(ctx context.Context, roleID uuid.UUID, in models.LinkTaskInput) (*models.RoleTask, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.RoleTask{ID: uuid.New(), RoleID: roleID, TaskID: in.TaskID, DisplayOrder: in.DisplayOrder}, nil
}

func (m *mockNavigationService) LinkTasksToRole(ctx context.Context, roleID uuid.UUID, in []models.LinkTaskInput) ([]*models.RoleTask, error) {
	m.bulkTasks = in
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.RoleTask, len(in))
	for i, item := range in {
		out[i] = &models.RoleTask{ID: uuid.New(), RoleID: roleID, TaskID: item.TaskID}
	}
	return out, nil
}

func (m *mockNavigationService) ReorderTaskInRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error) {
	m.reorderOrder = displayOrder
	if m.err != nil {
		return nil, m.err
	}
	return &models.RoleTask{RoleID: roleID, TaskID: taskID, DisplayOrder: displayOrder}, nil
}

func (m *mockNavigationService) UpdateTaskAction(ctx context.Context, taskID, actionID uuid.UUID, in models.UpdateTaskActionInput) (*models.TaskAction, error) {
	m.taskActionIn = in
	if m.err != nil {
		return nil, m.err
	}
	ta := &models.TaskAction{TaskID: taskID, ActionID: actionID}
	if in.DisplayOrder != nil {
		ta.DisplayOrder = *in.DisplayOrder
	}
	return ta, nil
}

func (m *mockNavigationService) UnlinkActionFromTask(ctx context.Context, taskID, actionID uuid.UUID) error {
	return m.err
}

type mockLinkService struct {
	services.LinkService

	attachIn    models.AttachLinkInput
	detachKind  models.LinkParentKind
	bulkIn      []models.AttachLinkInput
	filter      models.LinkFilter
	usageLinkID *uuid.UUID
	err         error
}

func (m *mockLinkService) List(ctx context.Context, filter models.LinkFilter, opts models.ListOptions) (*models.Page[*models.Link], error) {
	m.filter = filter
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]*models.Link{}, 0, opts.Bounded()), nil
}

func (m *mockLinkService) Attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error) {
	m.attachIn = in
	if m.err != nil {
		return nil, m.err
	}
	return &models.LinkAttachment{ID: uuid.New(), ParentKind: in.ParentKind, ParentID: in.ParentID, LinkID: in.LinkID}, nil
}

func (m *mockLinkService) Detach(ctx context.Context, kind models.LinkParentKind, parentID, linkID uuid.UUID) error {
	m.detachKind = kind
	return m.err
}

func (m *mockLinkService) BulkAttach(ctx context.Context, in []models.AttachLinkInput) ([]*models.LinkAttachment, error) {
	m.bulkIn = in
	if m.err != nil {
		return nil, m.err
	}
	return []*models.LinkAttachment{}, nil
}

func (m *mockLinkService) UsageStats(ctx context.Context, linkID *uuid.UUID) ([]*models.LinkUsage, error) {
	m.usageLinkID = linkID
	if m.err != nil {
		return nil, m.err
	}
	return []*models.LinkUsage{}, nil
}

func (m *mockLinkService) NeedingVerification(ctx context.Context) ([]*models.Link, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*models.Link{}, nil
}
