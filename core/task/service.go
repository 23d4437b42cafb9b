package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/group"
)

var (
	// errors
	ErrNotFound     = core.NewError(core.KindNotFound, "task not found")
	ErrLeavingDone  = core.NewError(core.KindInvalidState, "task is done; confirm to move it back")
	ErrUnknownState = core.NewError(core.KindInvalidState, "unknown task status")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		GetTask(ctx context.Context, id string, exec ...core.DBExecutor) (Task, error)
		// QueryTasks returns tasks ordered by due date then creation date.
		QueryTasks(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Task, error)
		UpdateTask(ctx context.Context, t Task, exec ...core.DBExecutor) (Task, error)
		// DeleteTask removes the task and its submissions.
		DeleteTask(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo      Repository
		groupRepo group.Repository
		logger    core.Logger
	}
)

func NewService(repo Repository, groupRepo group.Repository, logger core.Logger) *Service {
	return &Service{repo: repo, groupRepo: groupRepo, logger: logger}
}

// Create adds a task to a group managed by the signed-in mentor. Status starts at todo.
func (svc *Service) Create(ctx context.Context, nt NewTask) (Task, error) {
	nt.Clean()
	var flds []core.FieldError
	if nt.GroupID == "" {
		flds = append(flds, core.FieldError{Field: "group_id", Error: "select a group"})
	}
	if nt.Title == "" {
		flds = append(flds, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if !nt.Priority.Valid() {
		flds = append(flds, core.FieldError{Field: "priority", Error: "priority must be one of low, medium, high"})
	}
	if nt.Points < 0 {
		flds = append(flds, core.FieldError{Field: "points", Error: "points cannot be negative"})
	}
	if len(flds) > 0 {
		return Task{}, core.NewValidationError(nil, flds...)
	}

	grp, acc, _, err := group.Authorize(ctx, svc.groupRepo, nt.GroupID, group.Access.CanManage)
	if err != nil {
		return Task{}, err
	}

	now := core.NowFunc()
	t := Task{
		ID:          uuid.New().String(),
		GroupID:     grp.ID,
		Title:       nt.Title,
		Description: nt.Description,
		Status:      StatusTodo,
		Priority:    nt.Priority,
		Points:      nt.Points,
		Labels:      nt.Labels,
		Subtasks:    []Subtask{},
		CreatedBy:   acc.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !nt.DueDate.IsZero() {
		t.DueDate = nt.DueDate.UTC()
	}
	if t, err = svc.repo.CreateTask(ctx, t); err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}
	return t, nil
}

// load fetches a task and checks the signed-in account's access to its group.
func (svc *Service) load(ctx context.Context, id string, allowed func(group.Access) bool) (Task, account.Account, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, account.Account{}, err
	}
	_, acc, _, err := group.Authorize(ctx, svc.groupRepo, t.GroupID, allowed)
	if err != nil {
		if errors.Cause(err) == group.ErrNotFound {
			return Task{}, account.Account{}, ErrNotFound
		}
		return Task{}, account.Account{}, err
	}
	return t, acc, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Task, error) {
	t, _, err := svc.load(ctx, id, group.Access.CanView)
	return t, err
}

func (svc *Service) ListByGroup(ctx context.Context, groupID string, status Status) ([]Task, error) {
	if status != "" && !status.Valid() {
		return nil, ErrUnknownState
	}
	grp, _, _, err := group.Authorize(ctx, svc.groupRepo, groupID, group.Access.CanView)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryTasks(ctx, QueryFilter{GroupID: grp.ID, Status: status})
}

// Move changes a task's status (kanban drag). Any transition is allowed, but leaving done needs confirmation.
func (svc *Service) Move(ctx context.Context, id string, status Status, opts MoveOptions) (Task, error) {
	if !status.Valid() {
		return Task{}, ErrUnknownState
	}
	t, _, err := svc.load(ctx, id, group.Access.CanView)
	if err != nil {
		return Task{}, err
	}
	if t.Status == status {
		return t, nil
	}
	if t.Status == StatusDone && !opts.Confirm {
		return Task{}, ErrLeavingDone
	}
	t.Status = status
	t.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateTask(ctx, t)
}

// Edit opens a draft of the task for the group's mentor.
func (svc *Service) Edit(ctx context.Context, id string) (*Draft, error) {
	t, _, err := svc.load(ctx, id, group.Access.CanManage)
	if err != nil {
		return nil, err
	}
	return NewDraft(t), nil
}

// Save persists a draft. The draft's task must still belong to a group the signed-in mentor manages.
// A status change in the draft follows the same rules as Move, and a rejected change saves nothing.
func (svc *Service) Save(ctx context.Context, d *Draft, opts ...MoveOptions) (Task, error) {
	edited := d.Task()
	current, _, err := svc.load(ctx, edited.ID, group.Access.CanManage)
	if err != nil {
		return Task{}, err
	}
	if edited.Title == "" {
		return Task{}, core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if !d.Dirty() {
		return current, nil
	}
	if edited.Status != current.Status {
		if !edited.Status.Valid() {
			return Task{}, ErrUnknownState
		}
		if current.Status == StatusDone && (len(opts) == 0 || !opts[0].Confirm) {
			return Task{}, ErrLeavingDone
		}
	}

	// identity and ownership fields are not editable
	edited.GroupID = current.GroupID
	edited.CreatedBy = current.CreatedBy
	edited.CreatedAt = current.CreatedAt
	edited.UpdatedAt = core.NowFunc()
	t, err := svc.repo.UpdateTask(ctx, edited)
	if err != nil {
		return Task{}, errors.Wrap(err, "updating task")
	}
	return t, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	t, acc, err := svc.load(ctx, id, group.Access.CanManage)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteTask(ctx, t.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	svc.logger.Info(fmt.Sprintf("task %s deleted", t.ID), acc)
	return nil
}
