package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-docs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-docs/pkg/models"
)

// SeedDocument is the YAML layout accepted by SeedService.Import.
// Actions are referenced by title from sequences, tasks and link attachments,
// so action titles must be unique within one document.
type SeedDocument struct {
	Systems []SeedSystem `yaml:"systems"`
	Roles   []SeedRole   `yaml:"roles"`
	Links   []SeedLink   `yaml:"links"`
}

type SeedSystem struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Actions     []SeedAction     `yaml:"actions"`
	Departments []SeedDepartment `yaml:"departments"`
}

type SeedDepartment struct {
	Name           string              `yaml:"name"`
	Description    string              `yaml:"description"`
	PracticeGroups []SeedPracticeGroup `yaml:"practice_groups"`
}

type SeedPracticeGroup struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Actions     []SeedAction   `yaml:"actions"`
	Sequences   []SeedSequence `yaml:"sequences"`
}

type SeedAction struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Steps       []any  `yaml:"steps"`
}

type SeedSequence struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Steps       []SeedActionRef `yaml:"steps"`
}

// SeedActionRef points at an action by title.
type SeedActionRef struct {
	Action string `yaml:"action"`
	Notes  string `yaml:"notes"`
}

type SeedRole struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tasks       []SeedTask `yaml:"tasks"`
}

// SeedTask is created once per distinct name; listing the same task under
// several roles links the one task into each of them.
type SeedTask struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Actions     []SeedActionRef `yaml:"actions"`
}

type SeedLink struct {
	URL          string           `yaml:"url"`
	Title        string           `yaml:"title"`
	Description  string           `yaml:"description"`
	LinkType     string           `yaml:"link_type"`
	AuthRequired string           `yaml:"auth_required"`
	AccessNotes  string           `yaml:"access_notes"`
	Attach       []SeedAttachment `yaml:"attach"`
}

// SeedAttachment names a parent by kind and name (title for actions).
type SeedAttachment struct {
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name"`
	Notes string `yaml:"notes"`
}

// SeedResult counts what an import created.
type SeedResult struct {
	Systems        int `json:"systems"`
	Departments    int `json:"departments"`
	PracticeGroups int `json:"practice_groups"`
	Actions        int `json:"actions"`
	Sequences      int `json:"sequences"`
	Roles          int `json:"roles"`
	Tasks          int `json:"tasks"`
	Links          int `json:"links"`
	Attachments    int `json:"attachments"`
}

// SeedService imports a documentation tree from YAML.
type SeedService interface {
	// Import creates everything in doc within one transaction; any error rolls back all of it.
	Import(ctx context.Context, r io.Reader, owner string) (*SeedResult, error)
}

type seedService struct {
	hierarchy  HierarchyService
	actions    ActionService
	sequences  SequenceService
	navigation NavigationService
	links      LinkService
	withTx     TxFunc
	logger     *zap.Logger
}

// NewSeedService creates a new SeedService.
func NewSeedService(
	hierarchy HierarchyService,
	actions ActionService,
	sequences SequenceService,
	navigation NavigationService,
	links LinkService,
	withTx TxFunc,
	logger *zap.Logger,
) SeedService {
	return &seedService{
		hierarchy:  hierarchy,
		actions:    actions,
		sequences:  sequences,
		navigation: navigation,
		links:      links,
		withTx:     withTx,
		logger:     logger.Named("seed-service"),
	}
}

var _ SeedService = (*seedService)(nil)

// seedRun carries the name indexes built while importing one document.
type seedRun struct {
	*seedService
	result    SeedResult
	systemIDs map[string]uuid.UUID
	actionIDs map[string]uuid.UUID
	roleIDs   map[string]uuid.UUID
	taskIDs   map[string]uuid.UUID
}

func (s *seedService) Import(ctx context.Context, r io.Reader, owner string) (*SeedResult, error) {
	var doc SeedDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &SeedResult{}, nil
		}
		return nil, apperrors.Validation("invalid seed document: %v", err)
	}

	ctx = models.WithActor(ctx, models.Actor{Subject: owner, Source: models.ActorSourceSeed})
	run := &seedRun{
		seedService: s,
		systemIDs:   make(map[string]uuid.UUID),
		actionIDs:   make(map[string]uuid.UUID),
		roleIDs:     make(map[string]uuid.UUID),
		taskIDs:     make(map[string]uuid.UUID),
	}

	err := s.withTx(ctx, func(ctx context.Context) error {
		for i, sys := range doc.Systems {
			if err := run.importSystem(ctx, i, sys); err != nil {
				return err
			}
		}
		for i, role := range doc.Roles {
			if err := run.importRole(ctx, i, role); err != nil {
				return err
			}
		}
		for _, link := range doc.Links {
			if err := run.importLink(ctx, link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Seed import rolled back", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Seed import complete",
		zap.Int("systems", run.result.Systems),
		zap.Int("actions", run.result.Actions),
		zap.Int("roles", run.result.Roles),
		zap.Int("tasks", run.result.Tasks),
		zap.Int("links", run.result.Links))
	return &run.result, nil
}

func (r *seedRun) importSystem(ctx context.Context, order int, in SeedSystem) error {
	sys, err := r.hierarchy.Create(ctx, models.LevelSystem, nil, models.CreateNodeInput{
		Name: in.Name, Description: in.Description, DisplayOrder: order,
	})
	if err != nil {
		return fmt.Errorf("system %q: %w", in.Name, err)
	}
	r.result.Systems++
	r.systemIDs[in.Name] = sys.ID

	for i, a := range in.Actions {
		if err := r.importAction(ctx, models.CreateActionInput{SystemID: &sys.ID}, i, a); err != nil {
			return err
		}
	}

	for i, d := range in.Departments {
		dept, err := r.hierarchy.Create(ctx, models.LevelDepartment, &sys.ID, models.CreateNodeInput{
			Name: d.Name, Description: d.Description, DisplayOrder: i,
		})
		if err != nil {
			return fmt.Errorf("department %q: %w", d.Name, err)
		}
		r.result.Departments++

		for j, pg := range d.PracticeGroups {
			if err := r.importPracticeGroup(ctx, dept.ID, j, pg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *seedRun) importPracticeGroup(ctx context.Context, deptID uuid.UUID, order int, in SeedPracticeGroup) error {
	group, err := r.hierarchy.Create(ctx, models.LevelPracticeGroup, &deptID, models.CreateNodeInput{
		Name: in.Name, Description: in.Description, DisplayOrder: order,
	})
	if err != nil {
		return fmt.Errorf("practice group %q: %w", in.Name, err)
	}
	r.result.PracticeGroups++

	for i, a := range in.Actions {
		if err := r.importAction(ctx, models.CreateActionInput{PracticeGroupID: &group.ID}, i, a); err != nil {
			return err
		}
	}

	for _, seq := range in.Sequences {
		created, err := r.sequences.Create(ctx, group.ID, models.CreateSequenceInput{Name: seq.Name, Description: seq.Description})
		if err != nil {
			return fmt.Errorf("sequence %q: %w", seq.Name, err)
		}
		r.result.Sequences++

		for i, step := range seq.Steps {
			actionID, err := r.actionID(step.Action)
			if err != nil {
				return fmt.Errorf("sequence %q: %w", seq.Name, err)
			}
			_, err = r.sequences.AddAction(ctx, created.ID, models.AddSequenceActionInput{
				ActionID: actionID, OrderNumber: i + 1, Notes: step.Notes,
			})
			if err != nil {
				return fmt.Errorf("sequence %q step %d: %w", seq.Name, i+1, err)
			}
		}
	}
	return nil
}

func (r *seedRun) importAction(ctx context.Context, base models.CreateActionInput, order int, in SeedAction) error {
	if _, dup := r.actionIDs[in.Title]; dup {
		return apperrors.Validation("action title %q appears more than once", in.Title)
	}

	steps := in.Steps
	if steps == nil {
		steps = []any{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return apperrors.Validation("action %q: steps are not representable as JSON: %v", in.Title, err)
	}

	base.Title = in.Title
	base.Description = in.Description
	base.Steps = raw
	base.DisplayOrder = order

	action, err := r.actions.Create(ctx, base)
	if err != nil {
		return fmt.Errorf("action %q: %w", in.Title, err)
	}
	r.result.Actions++
	r.actionIDs[in.Title] = action.ID
	return nil
}

func (r *seedRun) importRole(ctx context.Context, order int, in SeedRole) error {
	role, err := r.navigation.CreateRole(ctx, models.CreateGraphNodeInput{
		Name: in.Name, Description: in.Description, DisplayOrder: order,
	})
	if err != nil {
		return fmt.Errorf("role %q: %w", in.Name, err)
	}
	r.result.Roles++
	r.roleIDs[in.Name] = role.ID

	for i, t := range in.Tasks {
		taskID, err := r.ensureTask(ctx, t)
		if err != nil {
			return err
		}
		_, err = r.navigation.LinkTaskToRole(ctx, role.ID, models.LinkTaskInput{TaskID: taskID, DisplayOrder: i})
		if err != nil {
			return fmt.Errorf("role %q task %q: %w", in.Name, t.Name, err)
		}
	}
	return nil
}

// ensureTask creates the task and its action links the first time its name
// is seen and returns the existing id afterwards.
func (r *seedRun) ensureTask(ctx context.Context, in SeedTask) (uuid.UUID, error) {
	if id, ok := r.taskIDs[in.Name]; ok {
		return id, nil
	}

	task, err := r.navigation.CreateTask(ctx, models.CreateGraphNodeInput{
		Name: in.Name, Description: in.Description, DisplayOrder: len(r.taskIDs),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("task %q: %w", in.Name, err)
	}
	r.result.Tasks++
	r.taskIDs[in.Name] = task.ID

	for i, ref := range in.Actions {
		actionID, err := r.actionID(ref.Action)
		if err != nil {
			return uuid.Nil, fmt.Errorf("task %q: %w", in.Name, err)
		}
		_, err = r.navigation.LinkActionToTask(ctx, task.ID, models.LinkActionInput{
			ActionID: actionID, DisplayOrder: i, Notes: ref.Notes,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("task %q action %q: %w", in.Name, ref.Action, err)
		}
	}
	return task.ID, nil
}

func (r *seedRun) importLink(ctx context.Context, in SeedLink) error {
	link, err := r.links.Create(ctx, models.CreateLinkInput{
		URL:          in.URL,
		Title:        in.Title,
		Description:  in.Description,
		LinkType:     models.LinkType(in.LinkType),
		AuthRequired: models.AuthRequirement(in.AuthRequired),
		AccessNotes:  in.AccessNotes,
	})
	if err != nil {
		return fmt.Errorf("link %q: %w", in.URL, err)
	}
	r.result.Links++

	for i, att := range in.Attach {
		kind := models.LinkParentKind(att.Kind)
		parentID, err := r.parentID(kind, att.Name)
		if err != nil {
			return fmt.Errorf("link %q: %w", in.URL, err)
		}
		_, err = r.links.Attach(ctx, models.AttachLinkInput{
			ParentKind: kind, ParentID: parentID, LinkID: link.ID, DisplayOrder: i, Notes: att.Notes,
		})
		if err != nil {
			return fmt.Errorf("link %q attach %s %q: %w", in.URL, att.Kind, att.Name, err)
		}
		r.result.Attachments++
	}
	return nil
}

func (r *seedRun) actionID(title string) (uuid.UUID, error) {
	id, ok := r.actionIDs[title]
	if !ok {
		return uuid.Nil, apperrors.Validation("unknown action %q", title)
	}
	return id, nil
}

func (r *seedRun) parentID(kind models.LinkParentKind, name string) (uuid.UUID, error) {
	var index map[string]uuid.UUID
	switch kind {
	case models.LinkParentSystem:
		index = r.systemIDs
	case models.LinkParentAction:
		index = r.actionIDs
	case models.LinkParentRole:
		index = r.roleIDs
	case models.LinkParentTask:
		index = r.taskIDs
	default:
		return uuid.Nil, apperrors.Validation("unknown link parent kind %q", kind)
	}
	id, ok := index[name]
	if !ok {
		return uuid.Nil, apperrors.Validation("unknown %s %q", kind, name)
	}
	return id, nil
}
