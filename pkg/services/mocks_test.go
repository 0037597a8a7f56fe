package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/repositories"
)

// ============================================================================
// In-memory repositories shared by service tests
// ============================================================================

type mockHierarchyRepo struct {
	nodes     map[models.HierarchyLevel]map[uuid.UUID]*models.HierarchyNode
	createErr error
}

func newMockHierarchyRepo() *mockHierarchyRepo {
	return &mockHierarchyRepo{nodes: map[models.HierarchyLevel]map[uuid.UUID]*models.HierarchyNode{
		models.LevelSystem:        {},
		models.LevelDepartment:    {},
		models.LevelPracticeGroup: {},
	}}
}

var _ repositories.HierarchyRepository = (*mockHierarchyRepo)(nil)

func (m *mockHierarchyRepo) add(level models.HierarchyLevel, parentID *uuid.UUID, name string) *models.HierarchyNode {
	n := &models.HierarchyNode{ID: uuid.New(), Level: level, ParentID: parentID, Name: name, CreatedAt: time.Now()}
	m.nodes[level][n.ID] = n
	return n
}

func (m *mockHierarchyRepo) Create(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, in models.CreateNodeInput) (*models.HierarchyNode, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	n := m.add(level, parentID, in.Name)
	n.Description = in.Description
	n.DisplayOrder = in.DisplayOrder
	return n, nil
}

func (m *mockHierarchyRepo) GetByID(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (*models.HierarchyNode, error) {
	n, ok := m.nodes[level][id]
	if !ok {
		return nil, apperrors.NotFound(labelFor(level), id)
	}
	return n, nil
}

func (m *mockHierarchyRepo) Update(ctx context.Context, level models.HierarchyLevel, id uuid.UUID, in models.UpdateNodeInput) (*models.HierarchyNode, error) {
	n, err := m.GetByID(ctx, level, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		n.Name = *in.Name
	}
	if in.DisplayOrder != nil {
		n.DisplayOrder = *in.DisplayOrder
	}
	return n, nil
}

func (m *mockHierarchyRepo) Delete(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) error {
	if _, ok := m.nodes[level][id]; !ok {
		return apperrors.NotFound(labelFor(level), id)
	}
	delete(m.nodes[level], id)
	return nil
}

func (m *mockHierarchyRepo) children(level models.HierarchyLevel, parentIDs map[uuid.UUID]bool) []*models.HierarchyNode {
	out := []*models.HierarchyNode{}
	for _, n := range m.nodes[level] {
		if n.ParentID == nil || parentIDs[*n.ParentID] {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

func (m *mockHierarchyRepo) ListChildren(ctx context.Context, level models.HierarchyLevel, parentID *uuid.UUID, opts models.ListOptions) ([]*models.HierarchyNode, int, error) {
	parents := map[uuid.UUID]bool{}
	if parentID != nil {
		parents[*parentID] = true
	}
	out := m.children(level, parents)
	return out, len(out), nil
}

func (m *mockHierarchyRepo) ListByParents(ctx context.Context, level models.HierarchyLevel, parentIDs []uuid.UUID) ([]*models.HierarchyNode, error) {
	parents := map[uuid.UUID]bool{}
	for _, id := range parentIDs {
		parents[id] = true
	}
	return m.children(level, parents), nil
}

func (m *mockHierarchyRepo) Exists(ctx context.Context, level models.HierarchyLevel, id uuid.UUID) (bool, error) {
	_, ok := m.nodes[level][id]
	return ok, nil
}

type mockActionRepo struct {
	actions     map[uuid.UUID]*models.Action
	screenshots map[uuid.UUID]*models.Screenshot
	createdBy   string
	lastCreate  models.CreateActionInput
}

func newMockActionRepo() *mockActionRepo {
	return &mockActionRepo{
		actions:     map[uuid.UUID]*models.Action{},
		screenshots: map[uuid.UUID]*models.Screenshot{},
	}
}

var _ repositories.ActionRepository = (*mockActionRepo)(nil)

func (m *mockActionRepo) Create(ctx context.Context, in models.CreateActionInput, createdBy string) (*models.Action, error) {
	m.lastCreate = in
	m.createdBy = createdBy
	a := &models.Action{
		ID: uuid.New(), SystemID: in.SystemID, PracticeGroupID: in.PracticeGroupID,
		Title: in.Title, Description: in.Description, Steps: in.Steps,
		DisplayOrder: in.DisplayOrder, CreatedBy: createdBy, CreatedAt: time.Now(),
	}
	m.actions[a.ID] = a
	return a, nil
}

func (m *mockActionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	a, ok := m.actions[id]
	if !ok {
		return nil, apperrors.NotFound("action", id)
	}
	return a, nil
}

func (m *mockActionRepo) Update(ctx context.Context, id uuid.UUID, in models.UpdateActionInput) (*models.Action, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		a.Title = *in.Title
	}
	if in.Steps != nil {
		a.Steps = in.Steps
	}
	return a, nil
}

func (m *mockActionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.actions[id]; !ok {
		return apperrors.NotFound("action", id)
	}
	delete(m.actions, id)
	return nil
}

func (m *mockActionRepo) ListByParent(ctx context.Context, kind models.ActionParentKind, parentID uuid.UUID, opts models.ListOptions) ([]*models.Action, int, error) {
	out, _ := m.ListByParents(ctx, kind, []uuid.UUID{parentID})
	return out, len(out), nil
}

func (m *mockActionRepo) ListByParents(ctx context.Context, kind models.ActionParentKind, parentIDs []uuid.UUID) ([]*models.Action, error) {
	parents := map[uuid.UUID]bool{}
	for _, id := range parentIDs {
		parents[id] = true
	}
	out := []*models.Action{}
	for _, a := range m.actions {
		switch {
		case kind == models.ActionParentSystem && a.SystemID != nil && parents[*a.SystemID]:
			out = append(out, a)
		case kind == models.ActionParentPracticeGroup && a.PracticeGroupID != nil && parents[*a.PracticeGroupID]:
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *mockActionRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.actions[id]
	return ok, nil
}

func (m *mockActionRepo) AddScreenshot(ctx context.Context, actionID uuid.UUID, in models.AddScreenshotInput) (*models.Screenshot, error) {
	s := &models.Screenshot{ID: uuid.New(), ActionID: actionID, Ref: in.Ref, Caption: in.Caption}
	m.screenshots[s.ID] = s
	return s, nil
}

func (m *mockActionRepo) ListScreenshots(ctx context.Context, actionID uuid.UUID) ([]*models.Screenshot, error) {
	out := []*models.Screenshot{}
	for _, s := range m.screenshots {
		if s.ActionID == actionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockActionRepo) DeleteScreenshot(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.screenshots[id]; !ok {
		return apperrors.NotFound("screenshot", id)
	}
	delete(m.screenshots, id)
	return nil
}

type mockSequenceRepo struct {
	sequences map[uuid.UUID]*models.ActionSequence
	steps     map[uuid.UUID]*models.SequenceAction
	actions   *mockActionRepo
}

func newMockSequenceRepo(actions *mockActionRepo) *mockSequenceRepo {
	return &mockSequenceRepo{
		sequences: map[uuid.UUID]*models.ActionSequence{},
		steps:     map[uuid.UUID]*models.SequenceAction{},
		actions:   actions,
	}
}

var _ repositories.SequenceRepository = (*mockSequenceRepo)(nil)

func (m *mockSequenceRepo) Create(ctx context.Context, practiceGroupID uuid.UUID, in models.CreateSequenceInput) (*models.ActionSequence, error) {
	s := &models.ActionSequence{ID: uuid.New(), PracticeGroupID: practiceGroupID, Name: in.Name, Description: in.Description}
	m.sequences[s.ID] = s
	return s, nil
}

func (m *mockSequenceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ActionSequence, error) {
	s, ok := m.sequences[id]
	if !ok {
		return nil, apperrors.NotFound("sequence", id)
	}
	return s, nil
}

func (m *mockSequenceRepo) Update(ctx context.Context, id uuid.UUID, in models.UpdateSequenceInput) (*models.ActionSequence, error) {
	s, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		s.Name = *in.Name
	}
	return s, nil
}

func (m *mockSequenceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.sequences[id]; !ok {
		return apperrors.NotFound("sequence", id)
	}
	delete(m.sequences, id)
	return nil
}

func (m *mockSequenceRepo) ListByPracticeGroup(ctx context.Context, practiceGroupID uuid.UUID, opts models.ListOptions) ([]*models.ActionSequence, int, error) {
	out := []*models.ActionSequence{}
	for _, s := range m.sequences {
		if s.PracticeGroupID == practiceGroupID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (m *mockSequenceRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.sequences[id]
	return ok, nil
}

func (m *mockSequenceRepo) AddAction(ctx context.Context, sequenceID uuid.UUID, in models.AddSequenceActionInput) (*models.SequenceAction, error) {
	for _, sa := range m.steps {
		if sa.SequenceID != sequenceID {
			continue
		}
		if sa.ActionID == in.ActionID {
			return nil, apperrors.Conflict("action is already in this sequence")
		}
		if sa.OrderNumber == in.OrderNumber {
			return nil, apperrors.Conflict("order number is already used in this sequence")
		}
	}
	sa := &models.SequenceAction{ID: uuid.New(), SequenceID: sequenceID, ActionID: in.ActionID, OrderNumber: in.OrderNumber, Notes: in.Notes}
	m.steps[sa.ID] = sa
	return sa, nil
}

func (m *mockSequenceRepo) GetSequenceAction(ctx context.Context, id uuid.UUID) (*models.SequenceAction, error) {
	sa, ok := m.steps[id]
	if !ok {
		return nil, apperrors.NotFound("sequence action", id)
	}
	return sa, nil
}

func (m *mockSequenceRepo) UpdateSequenceAction(ctx context.Context, id uuid.UUID, in models.UpdateSequenceActionInput) (*models.SequenceAction, error) {
	sa, err := m.GetSequenceAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.OrderNumber != nil {
		for _, other := range m.steps {
			if other.ID != id && other.SequenceID == sa.SequenceID && other.OrderNumber == *in.OrderNumber {
				return nil, apperrors.Conflict("order number is already used in this sequence")
			}
		}
		sa.OrderNumber = *in.OrderNumber
	}
	if in.Notes != nil {
		sa.Notes = *in.Notes
	}
	return sa, nil
}

func (m *mockSequenceRepo) RemoveSequenceAction(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.steps[id]; !ok {
		return apperrors.NotFound("sequence action", id)
	}
	delete(m.steps, id)
	return nil
}

func (m *mockSequenceRepo) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error) {
	out := []*models.SequenceStep{}
	for _, sa := range m.steps {
		if sa.SequenceID == sequenceID {
			out = append(out, &models.SequenceStep{SequenceAction: *sa, Action: m.actions.actions[sa.ActionID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

func (m *mockSequenceRepo) ListForAction(ctx context.Context, actionID uuid.UUID) ([]*models.SequencePath, error) {
	out := []*models.SequencePath{}
	for _, sa := range m.steps {
		if sa.ActionID == actionID {
			out = append(out, &models.SequencePath{Sequence: m.sequences[sa.SequenceID], OrderNumber: sa.OrderNumber})
		}
	}
	return out, nil
}

// mockOwnedRepo backs both RoleRepository and TaskRepository.
type mockOwnedRepo struct {
	rows  map[uuid.UUID]*models.Role
	label string
}

func newMockOwnedRepo(label string) *mockOwnedRepo {
	return &mockOwnedRepo{rows: map[uuid.UUID]*models.Role{}, label: label}
}

func (m *mockOwnedRepo) create(owner string, in models.CreateGraphNodeInput) *models.Role {
	r := &models.Role{ID: uuid.New(), OwnerUserID: owner, Name: in.Name, Description: in.Description, DisplayOrder: in.DisplayOrder}
	m.rows[r.ID] = r
	return r
}

func (m *mockOwnedRepo) get(id uuid.UUID) (*models.Role, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, apperrors.NotFound(m.label, id)
	}
	return r, nil
}

func (m *mockOwnedRepo) update(id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Role, error) {
	r, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.DisplayOrder != nil {
		r.DisplayOrder = *in.DisplayOrder
	}
	return r, nil
}

func (m *mockOwnedRepo) delete(id uuid.UUID) error {
	if _, ok := m.rows[id]; !ok {
		return apperrors.NotFound(m.label, id)
	}
	delete(m.rows, id)
	return nil
}

func (m *mockOwnedRepo) list(owner string) []*models.Role {
	out := []*models.Role{}
	for _, r := range m.rows {
		if r.OwnerUserID == owner {
			out = append(out, r)
		}
	}
	return out
}

type mockRoleRepo struct{ *mockOwnedRepo }

var _ repositories.RoleRepository = mockRoleRepo{}

func (m mockRoleRepo) Create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*models.Role, error) {
	return m.create(owner, in), nil
}
func (m mockRoleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	return m.get(id)
}
func (m mockRoleRepo) Update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Role, error) {
	return m.update(id, in)
}
func (m mockRoleRepo) Delete(ctx context.Context, id uuid.UUID) error { return m.delete(id) }
func (m mockRoleRepo) ListByOwner(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Role, int, error) {
	out := m.list(owner)
	return out, len(out), nil
}
func (m mockRoleRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.rows[id]
	return ok, nil
}

type mockTaskRepo struct{ *mockOwnedRepo }

var _ repositories.TaskRepository = mockTaskRepo{}

func asTask(r *models.Role) *models.Task {
	if r == nil {
		return nil
	}
	t := models.Task(*r)
	return &t
}

func (m mockTaskRepo) Create(ctx context.Context, owner string, in models.CreateGraphNodeInput) (*models.Task, error) {
	return asTask(m.create(owner, in)), nil
}
func (m mockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	r, err := m.get(id)
	return asTask(r), err
}
func (m mockTaskRepo) Update(ctx context.Context, id uuid.UUID, in models.UpdateGraphNodeInput) (*models.Task, error) {
	r, err := m.update(id, in)
	return asTask(r), err
}
func (m mockTaskRepo) Delete(ctx context.Context, id uuid.UUID) error { return m.delete(id) }
func (m mockTaskRepo) ListByOwner(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Task, int, error) {
	rows := m.list(owner)
	out := make([]*models.Task, len(rows))
	for i, r := range rows {
		out[i] = asTask(r)
	}
	return out, len(out), nil
}
func (m mockTaskRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.rows[id]
	return ok, nil
}

type mockNavRepo struct {
	roleTasks       []*models.RoleTask
	taskActions     []*models.TaskAction
	roles           mockRoleRepo
	tasks           mockTaskRepo
	actions         *mockActionRepo
	taskActionPages int
}

var _ repositories.NavigationRepository = (*mockNavRepo)(nil)

func (m *mockNavRepo) LinkTaskToRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error) {
	for _, rt := range m.roleTasks {
		if rt.RoleID == roleID && rt.TaskID == taskID {
			return nil, apperrors.Conflict("task is already linked to this role")
		}
	}
	rt := &models.RoleTask{ID: uuid.New(), RoleID: roleID, TaskID: taskID, DisplayOrder: displayOrder}
	m.roleTasks = append(m.roleTasks, rt)
	return rt, nil
}

func (m *mockNavRepo) UnlinkTaskFromRole(ctx context.Context, roleID, taskID uuid.UUID) error {
	for i, rt := range m.roleTasks {
		if rt.RoleID == roleID && rt.TaskID == taskID {
			m.roleTasks = append(m.roleTasks[:i], m.roleTasks[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("role task", taskID)
}

func (m *mockNavRepo) ReorderTaskInRole(ctx context.Context, roleID, taskID uuid.UUID, displayOrder int) (*models.RoleTask, error) {
	for _, rt := range m.roleTasks {
		if rt.RoleID == roleID && rt.TaskID == taskID {
			rt.DisplayOrder = displayOrder
			return rt, nil
		}
	}
	return nil, apperrors.NotFound("role task", taskID)
}

func (m *mockNavRepo) TasksForRole(ctx context.Context, roleID uuid.UUID, opts models.ListOptions) ([]*models.TaskInRole, int, error) {
	out := []*models.TaskInRole{}
	for _, rt := range m.roleTasks {
		if rt.RoleID == roleID {
			t, _ := m.tasks.GetByID(ctx, rt.TaskID)
			out = append(out, &models.TaskInRole{Task: *t, DisplayOrder: rt.DisplayOrder, RoleTaskID: rt.ID})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, len(out), nil
}

func (m *mockNavRepo) RolesForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) ([]*models.RoleForTask, int, error) {
	out := []*models.RoleForTask{}
	for _, rt := range m.roleTasks {
		if rt.TaskID == taskID {
			r, _ := m.roles.GetByID(ctx, rt.RoleID)
			out = append(out, &models.RoleForTask{Role: *r, DisplayOrder: rt.DisplayOrder, RoleTaskID: rt.ID})
		}
	}
	return out, len(out), nil
}

func (m *mockNavRepo) RolesForTasks(ctx context.Context, taskIDs []uuid.UUID) (map[uuid.UUID][]*models.Role, error) {
	out := map[uuid.UUID][]*models.Role{}
	for _, id := range taskIDs {
		for _, rt := range m.roleTasks {
			if rt.TaskID == id {
				r, _ := m.roles.GetByID(ctx, rt.RoleID)
				out[id] = append(out[id], r)
			}
		}
	}
	return out, nil
}

func (m *mockNavRepo) LinkActionToTask(ctx context.Context, taskID uuid.UUID, in models.LinkActionInput) (*models.TaskAction, error) {
	for _, ta := range m.taskActions {
		if ta.TaskID == taskID && ta.ActionID == in.ActionID {
			return nil, apperrors.Conflict("action is already linked to this task")
		}
	}
	ta := &models.TaskAction{ID: uuid.New(), TaskID: taskID, ActionID: in.ActionID, DisplayOrder: in.DisplayOrder, Notes: in.Notes}
	m.taskActions = append(m.taskActions, ta)
	return ta, nil
}

func (m *mockNavRepo) UnlinkActionFromTask(ctx context.Context, taskID, actionID uuid.UUID) error {
	for i, ta := range m.taskActions {
		if ta.TaskID == taskID && ta.ActionID == actionID {
			m.taskActions = append(m.taskActions[:i], m.taskActions[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("task action", actionID)
}

func (m *mockNavRepo) UpdateTaskAction(ctx context.Context, taskID, actionID uuid.UUID, in models.UpdateTaskActionInput) (*models.TaskAction, error) {
	for _, ta := range m.taskActions {
		if ta.TaskID == taskID && ta.ActionID == actionID {
			if in.DisplayOrder != nil {
				ta.DisplayOrder = *in.DisplayOrder
			}
			if in.Notes != nil {
				ta.Notes = *in.Notes
			}
			return ta, nil
		}
	}
	return nil, apperrors.NotFound("task action", actionID)
}

func (m *mockNavRepo) ActionsForTask(ctx context.Context, taskID uuid.UUID, opts models.ListOptions) ([]*models.ActionInTask, int, error) {
	out := []*models.ActionInTask{}
	for _, ta := range m.taskActions {
		if ta.TaskID == taskID {
			a := m.actions.actions[ta.ActionID]
			out = append(out, &models.ActionInTask{Action: *a, DisplayOrder: ta.DisplayOrder, Notes: ta.Notes, TaskActionID: ta.ID})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, len(out), nil
}

func (m *mockNavRepo) TasksForAction(ctx context.Context, actionID uuid.UUID, opts models.ListOptions) ([]*models.TaskForAction, int, error) {
	out := []*models.TaskForAction{}
	for _, ta := range m.taskActions {
		if ta.ActionID == actionID {
			t, _ := m.tasks.GetByID(ctx, ta.TaskID)
			out = append(out, &models.TaskForAction{Task: *t, DisplayOrder: ta.DisplayOrder, Notes: ta.Notes, TaskActionID: ta.ID})
		}
	}
	m.taskActionPages++
	return window(out, opts), len(out), nil
}

// window applies Offset and Limit; a zero Limit returns the rest.
func window[T any](rows []T, opts models.ListOptions) []T {
	if opts.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows
}

type attachmentKey struct {
	kind     models.LinkParentKind
	parentID uuid.UUID
	linkID   uuid.UUID
}

type mockLinkRepo struct {
	links       map[uuid.UUID]*models.Link
	attachments map[attachmentKey]*models.LinkAttachment
	parents     map[models.LinkParentKind]map[uuid.UUID]bool
	parentOK    func(kind models.LinkParentKind, id uuid.UUID) bool
	usageCalls  int
	lastCutoff  time.Time
	verifiedAt  time.Time
	createdBy   string
	lastCreate  models.CreateLinkInput
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{
		links:       map[uuid.UUID]*models.Link{},
		attachments: map[attachmentKey]*models.LinkAttachment{},
		parents: map[models.LinkParentKind]map[uuid.UUID]bool{
			models.LinkParentSystem: {}, models.LinkParentAction: {},
			models.LinkParentRole: {}, models.LinkParentTask: {},
		},
	}
}

// dropParent mirrors the attachment cascade when a parent row is deleted.
func (m *mockLinkRepo) dropParent(kind models.LinkParentKind, id uuid.UUID) {
	for k := range m.attachments {
		if k.kind == kind && k.parentID == id {
			delete(m.attachments, k)
		}
	}
}

var _ repositories.LinkRepository = (*mockLinkRepo)(nil)

func (m *mockLinkRepo) Create(ctx context.Context, in models.CreateLinkInput, createdBy string) (*models.Link, error) {
	m.lastCreate = in
	m.createdBy = createdBy
	l := &models.Link{ID: uuid.New(), URL: in.URL, Title: in.Title, LinkType: in.LinkType,
		AuthRequired: in.AuthRequired, Status: in.Status, CreatedBy: createdBy, CreatedAt: time.Now()}
	m.links[l.ID] = l
	return l, nil
}

func (m *mockLinkRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	l, ok := m.links[id]
	if !ok {
		return nil, apperrors.NotFound("link", id)
	}
	return l, nil
}

func (m *mockLinkRepo) Update(ctx context.Context, id uuid.UUID, in models.UpdateLinkInput) (*models.Link, error) {
	l, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		l.Status = *in.Status
	}
	if in.Title != nil {
		l.Title = *in.Title
	}
	return l, nil
}

func (m *mockLinkRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.links[id]; !ok {
		return apperrors.NotFound("link", id)
	}
	delete(m.links, id)
	for k := range m.attachments {
		if k.linkID == id {
			delete(m.attachments, k)
		}
	}
	return nil
}

func (m *mockLinkRepo) List(ctx context.Context, filter models.LinkFilter, opts models.ListOptions) ([]*models.Link, int, error) {
	out := []*models.Link{}
	for _, l := range m.links {
		if filter.Status == "" || l.Status == filter.Status {
			out = append(out, l)
		}
	}
	return out, len(out), nil
}

func (m *mockLinkRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.links[id]
	return ok, nil
}

func (m *mockLinkRepo) ParentExists(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) (bool, error) {
	if m.parentOK != nil {
		return m.parentOK(kind, parentID), nil
	}
	return m.parents[kind][parentID], nil
}

func (m *mockLinkRepo) Attach(ctx context.Context, in models.AttachLinkInput) (*models.LinkAttachment, error) {
	key := attachmentKey{in.ParentKind, in.ParentID, in.LinkID}
	if att, ok := m.attachments[key]; ok {
		att.DisplayOrder = in.DisplayOrder
		att.Notes = in.Notes
		return att, nil
	}
	att := &models.LinkAttachment{ID: uuid.New(), ParentKind: in.ParentKind, ParentID: in.ParentID,
		LinkID: in.LinkID, DisplayOrder: in.DisplayOrder, Notes: in.Notes}
	m.attachments[key] = att
	return att, nil
}

func (m *mockLinkRepo) Detach(ctx context.Context, kind models.LinkParentKind, parentID, linkID uuid.UUID) error {
	key := attachmentKey{kind, parentID, linkID}
	if _, ok := m.attachments[key]; !ok {
		return apperrors.NotFound("link attachment", linkID)
	}
	delete(m.attachments, key)
	return nil
}

func (m *mockLinkRepo) Reorder(ctx context.Context, in models.ReorderLinkInput) (*models.LinkAttachment, error) {
	att, ok := m.attachments[attachmentKey{in.ParentKind, in.ParentID, in.LinkID}]
	if !ok {
		return nil, apperrors.NotFound("link attachment", in.LinkID)
	}
	att.DisplayOrder = in.DisplayOrder
	return att, nil
}

func (m *mockLinkRepo) LinksFor(ctx context.Context, kind models.LinkParentKind, parentID uuid.UUID) ([]*models.AttachedLink, error) {
	out := []*models.AttachedLink{}
	for k, att := range m.attachments {
		l := m.links[k.linkID]
		if k.kind == kind && k.parentID == parentID && l.Status == models.LinkStatusActive {
			out = append(out, &models.AttachedLink{Link: *l, AttachmentID: att.ID, DisplayOrder: att.DisplayOrder, ContextNotes: att.Notes})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *mockLinkRepo) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (*models.Link, error) {
	l, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.verifiedAt = at
	l.LastVerifiedAt = &at
	return l, nil
}

func (m *mockLinkRepo) UsageStats(ctx context.Context, linkID *uuid.UUID) ([]*models.LinkUsage, error) {
	m.usageCalls++
	out := []*models.LinkUsage{}
	for _, l := range m.links {
		if linkID != nil && l.ID != *linkID {
			continue
		}
		u := &models.LinkUsage{LinkID: l.ID, Title: l.Title, URL: l.URL, Status: l.Status}
		for k := range m.attachments {
			if k.linkID != l.ID {
				continue
			}
			switch k.kind {
			case models.LinkParentSystem:
				u.SystemCount++
			case models.LinkParentAction:
				u.ActionCount++
			case models.LinkParentRole:
				u.RoleCount++
			case models.LinkParentTask:
				u.TaskCount++
			}
		}
		u.TotalCount = u.SystemCount + u.ActionCount + u.RoleCount + u.TaskCount
		out = append(out, u)
	}
	return out, nil
}

func (m *mockLinkRepo) Orphaned(ctx context.Context) ([]*models.Link, error) {
	used := map[uuid.UUID]bool{}
	for k := range m.attachments {
		used[k.linkID] = true
	}
	out := []*models.Link{}
	for _, l := range m.links {
		if !used[l.ID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLinkRepo) NeedingVerification(ctx context.Context, cutoff time.Time) ([]*models.Link, error) {
	m.lastCutoff = cutoff
	out := []*models.Link{}
	for _, l := range m.links {
		if l.Status == models.LinkStatusActive && l.CheckedAt().Before(cutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

// mockUsageCache records cache traffic.
type mockUsageCache struct {
	entries       map[string][]*models.LinkUsage
	invalidations int
}

func newMockUsageCache() *mockUsageCache {
	return &mockUsageCache{entries: map[string][]*models.LinkUsage{}}
}

func (m *mockUsageCache) Get(ctx context.Context, key string) ([]*models.LinkUsage, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mockUsageCache) Set(ctx context.Context, key string, stats []*models.LinkUsage) {
	m.entries[key] = stats
}

func (m *mockUsageCache) Invalidate(ctx context.Context) {
	m.invalidations++
	m.entries = map[string][]*models.LinkUsage{}
}

// txRecorder is a TxFunc that records how many transactions ran and the
// error each ended with.
type txRecorder struct {
	calls int
	errs  []error
}

func (r *txRecorder) run(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	err := fn(ctx)
	r.errs = append(r.errs, err)
	return err
}

func withActor(subject string) context.Context {
	return models.WithActor(context.Background(), models.Actor{Subject: subject, Source: models.ActorSourceAPI})
}

// testEnv wires every service over the in-memory repositories so that
// cross-service flows (seed import, path resolution) see one shared store.
type testEnv struct {
	hierarchyRepo *mockHierarchyRepo
	actionRepo    *mockActionRepo
	sequenceRepo  *mockSequenceRepo
	roleRepo      mockRoleRepo
	taskRepo      mockTaskRepo
	navRepo       *mockNavRepo
	linkRepo      *mockLinkRepo
	usage         *mockUsageCache
	tx            *txRecorder

	hierarchy  HierarchyService
	actions    ActionService
	sequences  SequenceService
	navigation NavigationService
	links      LinkService
	seed       SeedService
}

func newTestEnv(opts ...LinkServiceOption) *testEnv {
	e := &testEnv{
		hierarchyRepo: newMockHierarchyRepo(),
		actionRepo:    newMockActionRepo(),
		roleRepo:      mockRoleRepo{newMockOwnedRepo("role")},
		taskRepo:      mockTaskRepo{newMockOwnedRepo("task")},
		linkRepo:      newMockLinkRepo(),
		usage:         newMockUsageCache(),
		tx:            &txRecorder{},
	}
	e.sequenceRepo = newMockSequenceRepo(e.actionRepo)
	e.navRepo = &mockNavRepo{roles: e.roleRepo, tasks: e.taskRepo, actions: e.actionRepo}
	e.linkRepo.parentOK = func(kind models.LinkParentKind, id uuid.UUID) bool {
		switch kind {
		case models.LinkParentSystem:
			_, ok := e.hierarchyRepo.nodes[models.LevelSystem][id]
			return ok
		case models.LinkParentAction:
			_, ok := e.actionRepo.actions[id]
			return ok
		case models.LinkParentRole:
			_, ok := e.roleRepo.rows[id]
			return ok
		case models.LinkParentTask:
			_, ok := e.taskRepo.rows[id]
			return ok
		}
		return false
	}

	logger := zap.NewNop()
	e.hierarchy = NewHierarchyService(e.hierarchyRepo, e.actionRepo, e.usage, logger)
	e.actions = NewActionService(e.actionRepo, e.hierarchyRepo, e.navRepo, e.sequenceRepo, e.usage, logger)
	e.sequences = NewSequenceService(e.sequenceRepo, e.hierarchyRepo, e.actionRepo, logger)
	e.navigation = NewNavigationService(e.roleRepo, e.taskRepo, e.actionRepo, e.navRepo, e.usage, e.tx.run, logger)
	e.links = NewLinkService(e.linkRepo, e.usage, e.tx.run, logger, opts...)
	e.seed = NewSeedService(e.hierarchy, e.actions, e.sequences, e.navigation, e.links, e.tx.run, logger)
	return e
}

// practiceGroup creates a system, department and practice group chain.
func (e *testEnv) practiceGroup() (system, dept, group *models.HierarchyNode) {
	system = e.hierarchyRepo.add(models.LevelSystem, nil, "Clio")
	dept = e.hierarchyRepo.add(models.LevelDepartment, &system.ID, "Billing")
	group = e.hierarchyRepo.add(models.LevelPracticeGroup, &dept.ID, "Litigation")
	return system, dept, group
}
