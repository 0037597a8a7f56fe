//go:build integration

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/cache"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
	"github.com/ekaya-inc/ekaya-docs/pkg/repositories"
	"github.com/ekaya-inc/ekaya-docs/pkg/testhelpers"
)

const integrationSubject = "user-office-admin"

// dbEnv wires every service over the PostgreSQL repositories.
type dbEnv struct {
	ctx        context.Context
	hierarchy  HierarchyService
	actions    ActionService
	sequences  SequenceService
	navigation NavigationService
	links      LinkService
	seed       SeedService
}

func newDBEnv(t *testing.T, opts ...LinkServiceOption) *dbEnv {
	t.Helper()

	ctx := testhelpers.GetTestDB(t).ScopedContext(t)
	ctx = models.WithActor(ctx, models.Actor{Subject: integrationSubject, Source: models.ActorSourceAPI})

	logger := zap.NewNop()
	withTx := NewTxFunc()
	usage := cache.NoopUsageCache{}

	hierarchyRepo := repositories.NewHierarchyRepository()
	actionRepo := repositories.NewActionRepository()
	sequenceRepo := repositories.NewSequenceRepository()
	navRepo := repositories.NewNavigationRepository()

	e := &dbEnv{ctx: ctx}
	e.hierarchy = NewHierarchyService(hierarchyRepo, actionRepo, usage, logger)
	e.actions = NewActionService(actionRepo, hierarchyRepo, navRepo, sequenceRepo, usage, logger)
	e.sequences = NewSequenceService(sequenceRepo, hierarchyRepo, actionRepo, logger)
	e.navigation = NewNavigationService(repositories.NewRoleRepository(), repositories.NewTaskRepository(),
		actionRepo, navRepo, usage, withTx, logger)
	e.links = NewLinkService(repositories.NewLinkRepository(), usage, withTx, logger, opts...)
	e.seed = NewSeedService(e.hierarchy, e.actions, e.sequences, e.navigation, e.links, withTx, logger)
	return e
}

// practiceGroup creates System → Department → PracticeGroup and returns the system and group.
func (e *dbEnv) practiceGroup(t *testing.T) (*models.HierarchyNode, *models.HierarchyNode) {
	t.Helper()
	sys, err := e.hierarchy.Create(e.ctx, models.LevelSystem, nil, models.CreateNodeInput{Name: "Clio"})
	require.NoError(t, err)
	dept, err := e.hierarchy.Create(e.ctx, models.LevelDepartment, &sys.ID, models.CreateNodeInput{Name: "Billing"})
	require.NoError(t, err)
	pg, err := e.hierarchy.Create(e.ctx, models.LevelPracticeGroup, &dept.ID, models.CreateNodeInput{Name: "Litigation"})
	require.NoError(t, err)
	return sys, pg
}

func (e *dbEnv) action(t *testing.T, pgID uuid.UUID, title string) *models.Action {
	t.Helper()
	a, err := e.actions.Create(e.ctx, models.CreateActionInput{PracticeGroupID: &pgID, Title: title})
	require.NoError(t, err)
	return a
}

func (e *dbEnv) link(t *testing.T, url, title string) *models.Link {
	t.Helper()
	l, err := e.links.Create(e.ctx, models.CreateLinkInput{URL: url, Title: title})
	require.NoError(t, err)
	return l
}

func TestIntegration_OfficeManagerSeed(t *testing.T) {
	e := newDBEnv(t)

	result, err := e.seed.Import(e.ctx, strings.NewReader(officeManagerSeed), integrationSubject)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Actions)
	assert.Equal(t, 2, result.Attachments)

	roles, err := e.navigation.ListRoles(e.ctx, models.ListOptions{OrderBy: "name", OrderDirection: "asc"})
	require.NoError(t, err)
	require.Equal(t, 2, roles.Total)
	manager := roles.Data[0]
	assert.Equal(t, "Office Manager", manager.Name)

	tasks, err := e.navigation.TasksForRole(e.ctx, manager.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, tasks.Data, 1)
	task := tasks.Data[0]
	assert.Equal(t, "Month-end billing", task.Name)

	steps, err := e.navigation.ActionsForTask(e.ctx, task.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, steps.Data, 2)
	assert.Equal(t, "Log in to Clio", steps.Data[0].Title)
	assert.Equal(t, "Create invoice", steps.Data[1].Title)
	assert.Equal(t, "Use the batch screen", steps.Data[1].Notes)
	assert.NotNil(t, steps.Data[0].SystemID, "login action hangs off the system")
	assert.NotNil(t, steps.Data[1].PracticeGroupID)

	taskLinks, err := e.links.LinksFor(e.ctx, models.LinkParentTask, task.ID)
	require.NoError(t, err)
	require.Len(t, taskLinks, 1)
	assert.Equal(t, "Clio billing guide", taskLinks[0].Title)
	assert.Equal(t, "Read before the first run", taskLinks[0].ContextNotes)

	// The "Create invoice" action is reachable through its practice group,
	// the shared task (and both roles) and the month-end sequence.
	paths, err := e.actions.GetPaths(e.ctx, steps.Data[1].ID)
	require.NoError(t, err)
	require.Len(t, paths.Hierarchy, 3)
	assert.Equal(t, "Clio", paths.Hierarchy[0].Name)
	require.Len(t, paths.Tasks, 1)
	assert.Len(t, paths.Tasks[0].Roles, 2)
	require.Len(t, paths.Sequences, 1)
	assert.Equal(t, 1, paths.Sequences[0].OrderNumber)
}

func TestIntegration_JunctionDuplicatesConflict(t *testing.T) {
	e := newDBEnv(t)
	_, pg := e.practiceGroup(t)
	a := e.action(t, pg.ID, "Open matter")

	role, err := e.navigation.CreateRole(e.ctx, models.CreateGraphNodeInput{Name: "Paralegal"})
	require.NoError(t, err)
	task, err := e.navigation.CreateTask(e.ctx, models.CreateGraphNodeInput{Name: "Intake"})
	require.NoError(t, err)

	_, err = e.navigation.LinkTaskToRole(e.ctx, role.ID, models.LinkTaskInput{TaskID: task.ID, DisplayOrder: 1})
	require.NoError(t, err)
	_, err = e.navigation.LinkTaskToRole(e.ctx, role.ID, models.LinkTaskInput{TaskID: task.ID, DisplayOrder: 2})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = e.navigation.LinkActionToTask(e.ctx, task.ID, models.LinkActionInput{ActionID: a.ID})
	require.NoError(t, err)
	_, err = e.navigation.LinkActionToTask(e.ctx, task.ID, models.LinkActionInput{ActionID: a.ID, Notes: "again"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// Missing ends are named separately.
	_, err = e.navigation.LinkTaskToRole(e.ctx, uuid.New(), models.LinkTaskInput{TaskID: task.ID})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "role not found")
	_, err = e.navigation.LinkTaskToRole(e.ctx, role.ID, models.LinkTaskInput{TaskID: uuid.New()})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "task not found")

	// A failing bulk link leaves nothing behind.
	other, err := e.navigation.CreateTask(e.ctx, models.CreateGraphNodeInput{Name: "Conflict check"})
	require.NoError(t, err)
	_, err = e.navigation.LinkTasksToRole(e.ctx, role.ID, []models.LinkTaskInput{
		{TaskID: other.ID, DisplayOrder: 2},
		{TaskID: task.ID, DisplayOrder: 3},
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	inRole, err := e.navigation.TasksForRole(e.ctx, role.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, inRole.Data, 1)
	assert.Equal(t, task.ID, inRole.Data[0].ID)
	assert.Equal(t, 1, inRole.Data[0].DisplayOrder)
}

func TestIntegration_LinkReattachUpserts(t *testing.T) {
	e := newDBEnv(t)
	sys, _ := e.practiceGroup(t)
	l := e.link(t, "https://help.clio.com", "Clio help")

	first, err := e.links.Attach(e.ctx, models.AttachLinkInput{
		ParentKind: models.LinkParentSystem, ParentID: sys.ID, LinkID: l.ID, DisplayOrder: 1, Notes: "old",
	})
	require.NoError(t, err)
	second, err := e.links.Attach(e.ctx, models.AttachLinkInput{
		ParentKind: models.LinkParentSystem, ParentID: sys.ID, LinkID: l.ID, DisplayOrder: 5, Notes: "new",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	attached, err := e.links.LinksFor(e.ctx, models.LinkParentSystem, sys.ID)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, 5, attached[0].DisplayOrder)
	assert.Equal(t, "new", attached[0].ContextNotes)

	// Inactive links are hidden from reads but keep their attachment.
	inactive := models.LinkStatusInactive
	_, err = e.links.Update(e.ctx, l.ID, models.UpdateLinkInput{Status: &inactive})
	require.NoError(t, err)
	attached, err = e.links.LinksFor(e.ctx, models.LinkParentSystem, sys.ID)
	require.NoError(t, err)
	assert.Empty(t, attached)

	usage, err := e.links.UsageStats(e.ctx, &l.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].SystemCount)
	assert.Equal(t, 1, usage[0].TotalCount)

	_, err = e.links.Attach(e.ctx, models.AttachLinkInput{
		ParentKind: models.LinkParentRole, ParentID: uuid.New(), LinkID: l.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIntegration_SequenceOrdering(t *testing.T) {
	e := newDBEnv(t)
	_, pg := e.practiceGroup(t)
	open := e.action(t, pg.ID, "Open bill")
	review := e.action(t, pg.ID, "Review bill")
	send := e.action(t, pg.ID, "Send bill")

	seq, err := e.sequences.Create(e.ctx, pg.ID, models.CreateSequenceInput{Name: "Billing run"})
	require.NoError(t, err)

	// Inserted out of order on purpose.
	_, err = e.sequences.AddAction(e.ctx, seq.ID, models.AddSequenceActionInput{ActionID: send.ID, OrderNumber: 30})
	require.NoError(t, err)
	_, err = e.sequences.AddAction(e.ctx, seq.ID, models.AddSequenceActionInput{ActionID: open.ID, OrderNumber: 10})
	require.NoError(t, err)
	step, err := e.sequences.AddAction(e.ctx, seq.ID, models.AddSequenceActionInput{ActionID: review.ID, OrderNumber: 20})
	require.NoError(t, err)

	_, err = e.sequences.AddAction(e.ctx, seq.ID, models.AddSequenceActionInput{ActionID: open.ID, OrderNumber: 40})
	assert.ErrorIs(t, err, apperrors.ErrConflict, "same action twice")
	other := e.action(t, pg.ID, "Archive bill")
	_, err = e.sequences.AddAction(e.ctx, seq.ID, models.AddSequenceActionInput{ActionID: other.ID, OrderNumber: 20})
	assert.ErrorIs(t, err, apperrors.ErrConflict, "same order number twice")

	taken := 10
	_, err = e.sequences.UpdateSequenceAction(e.ctx, step.ID, models.UpdateSequenceActionInput{OrderNumber: &taken})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	withSteps, err := e.sequences.GetWithActions(e.ctx, seq.ID)
	require.NoError(t, err)
	require.Len(t, withSteps.Steps, 3)
	titles := make([]string, 0, 3)
	for i, s := range withSteps.Steps {
		titles = append(titles, s.Action.Title)
		if i > 0 {
			assert.Greater(t, s.OrderNumber, withSteps.Steps[i-1].OrderNumber)
		}
	}
	assert.Equal(t, []string{"Open bill", "Review bill", "Send bill"}, titles)
}

func TestIntegration_DeleteCascades(t *testing.T) {
	e := newDBEnv(t)
	sys, pg := e.practiceGroup(t)
	a := e.action(t, pg.ID, "File motion")
	kept := e.action(t, pg.ID, "Calendar hearing")
	l := e.link(t, "https://court.example.com/efile", "E-filing portal")

	role, err := e.navigation.CreateRole(e.ctx, models.CreateGraphNodeInput{Name: "Associate"})
	require.NoError(t, err)
	task, err := e.navigation.CreateTask(e.ctx, models.CreateGraphNodeInput{Name: "Motion practice"})
	require.NoError(t, err)
	_, err = e.navigation.LinkTaskToRole(e.ctx, role.ID, models.LinkTaskInput{TaskID: task.ID})
	require.NoError(t, err)
	_, err = e.navigation.LinkActionsToTask(e.ctx, task.ID, []models.LinkActionInput{
		{ActionID: a.ID, DisplayOrder: 1},
		{ActionID: kept.ID, DisplayOrder: 2},
	})
	require.NoError(t, err)

	seq, err := e.sequences.Create(e.ctx, pg.ID, models.CreateSequenceInput{Name: "Motion filing"})
	require.NoError(t, err)
	_, err = e.sequences.AddAction(e.ctx, seq.ID, models.AddSequenceActionInput{ActionID: a.ID, OrderNumber: 1})
	require.NoError(t, err)

	_, err = e.links.BulkAttach(e.ctx, []models.AttachLinkInput{
		{ParentKind: models.LinkParentAction, ParentID: a.ID, LinkID: l.ID},
		{ParentKind: models.LinkParentTask, ParentID: task.ID, LinkID: l.ID},
	})
	require.NoError(t, err)

	// Deleting the action removes its task, sequence and link rows only.
	require.NoError(t, e.actions.Delete(e.ctx, a.ID))

	steps, err := e.navigation.ActionsForTask(e.ctx, task.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, steps.Data, 1)
	assert.Equal(t, kept.ID, steps.Data[0].ID)

	withSteps, err := e.sequences.GetWithActions(e.ctx, seq.ID)
	require.NoError(t, err)
	assert.Empty(t, withSteps.Steps)

	usage, err := e.links.UsageStats(e.ctx, &l.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 0, usage[0].ActionCount)
	assert.Equal(t, 1, usage[0].TaskCount)

	// Deleting the task removes its role membership, step rows and link rows.
	require.NoError(t, e.navigation.DeleteTask(e.ctx, task.ID))

	inRole, err := e.navigation.TasksForRole(e.ctx, role.ID, models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, inRole.Data)

	memberships, err := e.navigation.TasksForAction(e.ctx, kept.ID, models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, memberships.Data)

	orphaned, err := e.links.Orphaned(e.ctx)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)
	assert.Equal(t, l.ID, orphaned[0].ID)

	// The hierarchy itself is untouched.
	tree, err := e.hierarchy.GetTree(e.ctx, sys.ID)
	require.NoError(t, err)
	require.Len(t, tree.Departments, 1)
	require.Len(t, tree.Departments[0].PracticeGroups, 1)
	assert.Len(t, tree.Departments[0].PracticeGroups[0].Actions, 1)
}

func TestIntegration_TaskActionContextIsPerTask(t *testing.T) {
	e := newDBEnv(t)
	_, pg := e.practiceGroup(t)
	a := e.action(t, pg.ID, "Run conflict search")

	intake, err := e.navigation.CreateTask(e.ctx, models.CreateGraphNodeInput{Name: "Client intake"})
	require.NoError(t, err)
	lateral, err := e.navigation.CreateTask(e.ctx, models.CreateGraphNodeInput{Name: "Lateral hire"})
	require.NoError(t, err)

	_, err = e.navigation.LinkActionToTask(e.ctx, intake.ID, models.LinkActionInput{ActionID: a.ID, DisplayOrder: 1, Notes: "Search the client name"})
	require.NoError(t, err)
	_, err = e.navigation.LinkActionToTask(e.ctx, lateral.ID, models.LinkActionInput{ActionID: a.ID, DisplayOrder: 7, Notes: "Search prior matters"})
	require.NoError(t, err)

	order := 3
	note := "Search client and adverse parties"
	_, err = e.navigation.UpdateTaskAction(e.ctx, intake.ID, a.ID, models.UpdateTaskActionInput{DisplayOrder: &order, Notes: &note})
	require.NoError(t, err)

	memberships, err := e.navigation.TasksForAction(e.ctx, a.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, memberships.Data, 2)
	byTask := map[uuid.UUID]*models.TaskForAction{}
	for _, m := range memberships.Data {
		byTask[m.ID] = m
	}
	assert.Equal(t, 3, byTask[intake.ID].DisplayOrder)
	assert.Equal(t, note, byTask[intake.ID].Notes)
	assert.Equal(t, 7, byTask[lateral.ID].DisplayOrder)
	assert.Equal(t, "Search prior matters", byTask[lateral.ID].Notes)
}

func TestIntegration_StalenessAndVerify(t *testing.T) {
	// Every link created now is 91 days old from the service's point of view.
	later := time.Now().Add(91 * 24 * time.Hour)
	e := newDBEnv(t, WithClock(func() time.Time { return later }))
	sys, _ := e.practiceGroup(t)

	stale := e.link(t, "https://vendor.example.com/portal", "Vendor portal")
	checked := e.link(t, "https://wiki.example.com/billing", "Billing wiki")
	broken := e.link(t, "https://old.example.com", "Old intranet")
	brokenStatus := models.LinkStatusBroken
	_, err := e.links.Update(e.ctx, broken.ID, models.UpdateLinkInput{Status: &brokenStatus})
	require.NoError(t, err)

	_, err = e.links.Attach(e.ctx, models.AttachLinkInput{ParentKind: models.LinkParentSystem, ParentID: sys.ID, LinkID: stale.ID})
	require.NoError(t, err)

	verified, err := e.links.Verify(e.ctx, checked.ID)
	require.NoError(t, err)
	require.NotNil(t, verified.LastVerifiedAt)
	assert.Equal(t, models.LinkStatusActive, verified.Status)

	queue, err := e.links.NeedingVerification(e.ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1, "broken links and freshly verified links are excluded")
	assert.Equal(t, stale.ID, queue[0].ID)

	_, err = e.links.Verify(e.ctx, stale.ID)
	require.NoError(t, err)
	queue, err = e.links.NeedingVerification(e.ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	orphaned, err := e.links.Orphaned(e.ctx)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(orphaned))
	for _, l := range orphaned {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{checked.ID, broken.ID}, ids)
}

func TestIntegration_BulkAttachRollsBack(t *testing.T) {
	e := newDBEnv(t)
	sys, pg := e.practiceGroup(t)
	a := e.action(t, pg.ID, "Set up billing codes")
	l := e.link(t, "https://help.clio.com/codes", "Billing codes")

	_, err := e.links.BulkAttach(e.ctx, []models.AttachLinkInput{
		{ParentKind: models.LinkParentSystem, ParentID: sys.ID, LinkID: l.ID},
		{ParentKind: models.LinkParentAction, ParentID: a.ID, LinkID: l.ID},
		{ParentKind: models.LinkParentTask, ParentID: uuid.New(), LinkID: l.ID},
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	for _, parent := range []struct {
		kind models.LinkParentKind
		id   uuid.UUID
	}{{models.LinkParentSystem, sys.ID}, {models.LinkParentAction, a.ID}} {
		attached, err := e.links.LinksFor(e.ctx, parent.kind, parent.id)
		require.NoError(t, err)
		assert.Empty(t, attached, parent.kind)
	}

	_, err = e.links.BulkAttach(e.ctx, []models.AttachLinkInput{
		{ParentKind: models.LinkParentSystem, ParentID: sys.ID, LinkID: l.ID, DisplayOrder: 1},
		{ParentKind: models.LinkParentAction, ParentID: a.ID, LinkID: l.ID, DisplayOrder: 1},
	})
	require.NoError(t, err)

	// A reorder batch that names a missing attachment changes nothing.
	_, err = e.links.ReorderAll(e.ctx, []models.ReorderLinkInput{
		{ParentKind: models.LinkParentSystem, ParentID: sys.ID, LinkID: l.ID, DisplayOrder: 9},
		{ParentKind: models.LinkParentRole, ParentID: uuid.New(), LinkID: l.ID, DisplayOrder: 9},
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	attached, err := e.links.LinksFor(e.ctx, models.LinkParentSystem, sys.ID)
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, 1, attached[0].DisplayOrder)
}
