package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/task"
	"github.com/trezcool/trackit/tests"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	other := testutil.CreateMentor(t, env.AccountRepo, "Other", "other@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	due := time.Date(2026, 11, 1, 9, 0, 0, 0, time.FixedZone("EAT", 3*3600))

	tests := []struct {
		name    string
		ctx     context.Context
		nt      task.NewTask
		wantErr error
		wantMsg string
	}{
		{name: "anonymous", ctx: context.Background(), nt: task.NewTask{GroupID: grp.ID, Title: "T"}, wantErr: core.ErrUnauthorized},
		{name: "student", ctx: testutil.SessionCtx(ada), nt: task.NewTask{GroupID: grp.ID, Title: "T"}, wantErr: core.ErrForbidden},
		{name: "other mentor", ctx: testutil.SessionCtx(other), nt: task.NewTask{GroupID: grp.ID, Title: "T"}, wantErr: core.ErrForbidden},
		{
			name: "invalid", ctx: testutil.SessionCtx(mentor), nt: task.NewTask{Title: " ", Priority: "urgent", Points: -1},
			wantMsg: "group_id: select a group; title: this field is required; priority: priority must be one of low, medium, high; points: points cannot be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.TaskSvc.Create(tt.ctx, tt.nt)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			} else {
				assert.EqualError(t, err, tt.wantMsg)
			}
		})
	}

	t.Run("ok", func(t *testing.T) {
		tsk, err := env.TaskSvc.Create(testutil.SessionCtx(mentor), task.NewTask{
			GroupID: grp.ID,
			Title:   " Wireframes ",
			DueDate: due,
			Points:  3,
			Labels:  []string{"ui", "ui"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Wireframes", tsk.Title)
		assert.Equal(t, task.StatusTodo, tsk.Status)
		assert.Equal(t, task.PriorityMedium, tsk.Priority)
		assert.Equal(t, due.UTC(), tsk.DueDate)
		assert.Equal(t, []string{"ui"}, tsk.Labels)
		assert.Equal(t, mentor.ID, tsk.CreatedBy)

		got, err := env.TaskSvc.Get(testutil.SessionCtx(ada), tsk.ID)
		require.NoError(t, err)
		assert.Equal(t, tsk.ID, got.ID)
	})
}

func TestService_Move(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	eve := testutil.CreateStudent(t, env.AccountRepo, "Eve", "eve@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusDone)
	ctx := testutil.SessionCtx(ada)

	_, err := env.TaskSvc.Move(testutil.SessionCtx(eve), tsk.ID, task.StatusTodo, task.MoveOptions{Confirm: true})
	assert.Equal(t, core.ErrForbidden, err)

	_, err = env.TaskSvc.Move(ctx, tsk.ID, "archived", task.MoveOptions{})
	assert.Equal(t, task.ErrUnknownState, err)

	_, err = env.TaskSvc.Move(ctx, "nope", task.StatusTodo, task.MoveOptions{})
	assert.Equal(t, task.ErrNotFound, errors.Cause(err))

	// staying put is not leaving done
	got, err := env.TaskSvc.Move(ctx, tsk.ID, task.StatusDone, task.MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, got.Status)

	_, err = env.TaskSvc.Move(ctx, tsk.ID, task.StatusInProgress, task.MoveOptions{})
	assert.Equal(t, task.ErrLeavingDone, err)

	got, err = env.TaskSvc.Move(ctx, tsk.ID, task.StatusInProgress, task.MoveOptions{Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)

	for _, status := range []task.Status{task.StatusSubmitted, task.StatusTodo, task.StatusDone} {
		got, err = env.TaskSvc.Move(ctx, tsk.ID, status, task.MoveOptions{})
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}
}

func TestService_board(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	todo := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)
	done := testutil.CreateTask(t, env.TaskRepo, grp, "Demo", task.StatusDone)
	ctx := testutil.SessionCtx(ada)

	tasks, err := env.TaskSvc.ListByGroup(ctx, grp.ID, "")
	require.NoError(t, err)
	board := task.NewBoard(tasks, env.TaskSvc)

	var rejected []task.MoveCommand
	board.OnFailure(func(cmd task.MoveCommand, err error) { rejected = append(rejected, cmd) })

	require.NoError(t, board.Move(ctx, todo.ID, task.StatusReview, task.MoveOptions{}))
	assert.Equal(t, task.ErrLeavingDone, board.Move(ctx, done.ID, task.StatusReview, task.MoveOptions{}))

	assert.Len(t, board.Column(task.StatusReview), 1)
	assert.Len(t, board.Column(task.StatusDone), 1)
	assert.Equal(t, []task.MoveCommand{{TaskID: done.ID, From: task.StatusDone, To: task.StatusReview}}, rejected)

	stored, err := env.TaskSvc.ListByGroup(ctx, grp.ID, task.StatusReview)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, todo.ID, stored[0].ID)
}

func TestService_EditSave(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)
	ctx := testutil.SessionCtx(mentor)

	_, err := env.TaskSvc.Edit(testutil.SessionCtx(ada), tsk.ID)
	assert.Equal(t, core.ErrForbidden, err)

	d, err := env.TaskSvc.Edit(ctx, tsk.ID)
	require.NoError(t, err)

	// an untouched draft saves nothing
	got, err := env.TaskSvc.Save(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, tsk.UpdatedAt, got.UpdatedAt)

	d.SetTitle(" ")
	_, err = env.TaskSvc.Save(ctx, d)
	assert.EqualError(t, err, "title: this field is required")

	d.SetTitle("Mockups")
	_, err = d.AddSubtask("Home")
	require.NoError(t, err)
	d.AddLabel("ui")

	// edits stay local until saved
	stored, err := env.TaskRepo.GetTask(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wireframes", stored.Title)

	got, err = env.TaskSvc.Save(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "Mockups", got.Title)
	assert.Equal(t, grp.ID, got.GroupID)
	assert.Equal(t, []string{"ui"}, got.Labels)
	require.Len(t, got.Subtasks, 1)

	stored, err = env.TaskRepo.GetTask(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestService_EditSaveStatus(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusDone)
	ctx := testutil.SessionCtx(mentor)

	d, err := env.TaskSvc.Edit(ctx, tsk.ID)
	require.NoError(t, err)
	todo := task.StatusTodo
	require.NoError(t, d.Apply(task.UpdateTask{Title: testutil.StrPtr("Renamed"), Status: &todo}))

	_, err = env.TaskSvc.Save(ctx, d)
	assert.Equal(t, task.ErrLeavingDone, errors.Cause(err))
	_, err = env.TaskSvc.Save(ctx, d, task.MoveOptions{})
	assert.Equal(t, task.ErrLeavingDone, errors.Cause(err))

	// the rejected save keeps every field
	stored, err := env.TaskRepo.GetTask(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wireframes", stored.Title)
	assert.Equal(t, task.StatusDone, stored.Status)

	got, err := env.TaskSvc.Save(ctx, d, task.MoveOptions{Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, task.StatusTodo, got.Status)
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)

	assert.Equal(t, core.ErrForbidden, env.TaskSvc.Delete(testutil.SessionCtx(ada), tsk.ID))
	require.NoError(t, env.TaskSvc.Delete(testutil.SessionCtx(mentor), tsk.ID))

	_, err := env.TaskSvc.Get(testutil.SessionCtx(mentor), tsk.ID)
	assert.Equal(t, task.ErrNotFound, errors.Cause(err))
}

func TestService_ListByGroup(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	now := time.Now().UTC()
	late := testutil.CreateTask(t, env.TaskRepo, grp, "Late", task.StatusTodo, now.Add(48*time.Hour))
	soon := testutil.CreateTask(t, env.TaskRepo, grp, "Soon", task.StatusTodo, now.Add(time.Hour))

	tasks, err := env.TaskSvc.ListByGroup(testutil.SessionCtx(ada), grp.ID, "")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, []string{soon.ID, late.ID}, []string{tasks[0].ID, tasks[1].ID})

	_, err = env.TaskSvc.ListByGroup(testutil.SessionCtx(ada), grp.ID, "archived")
	assert.Equal(t, task.ErrUnknownState, err)
}
