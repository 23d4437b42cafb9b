package submission_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
	"github.com/trezcool/trackit/tests"
)

func pdf(name, content string) submission.File {
	return submission.File{Name: name, ContentType: "application/pdf", Size: int64(len(content)), Body: strings.NewReader(content)}
}

func TestService_Submit(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	eve := testutil.CreateStudent(t, env.AccountRepo, "Eve", "eve@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)
	ctx := testutil.SessionCtx(ada)

	tests := []struct {
		name    string
		ctx     context.Context
		taskID  string
		file    submission.File
		wantErr error
	}{
		{name: "mentor", ctx: testutil.SessionCtx(mentor), taskID: tsk.ID, file: pdf("a.pdf", "x"), wantErr: core.ErrForbidden},
		{name: "outsider", ctx: testutil.SessionCtx(eve), taskID: tsk.ID, file: pdf("a.pdf", "x"), wantErr: core.ErrForbidden},
		{name: "unknown task", ctx: ctx, taskID: "nope", file: pdf("a.pdf", "x"), wantErr: task.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.SubmissionSvc.Submit(tt.ctx, tt.taskID, tt.file)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	t.Run("no file", func(t *testing.T) {
		_, err := env.SubmissionSvc.Submit(ctx, tsk.ID, submission.File{Name: ".."})
		assert.EqualError(t, err, "file: a file is required")
	})

	t.Run("storage failure", func(t *testing.T) {
		env.Storage.Err = errors.New("connection reset")
		defer func() { env.Storage.Err = nil }()

		_, err := env.SubmissionSvc.Submit(ctx, tsk.ID, pdf("a.pdf", "x"))
		assert.Equal(t, core.KindUpstream, core.KindOf(err))
		_, err = env.SubmissionRepo.GetSubmission(context.Background(), submission.GetFilter{TaskID: tsk.ID, StudentID: ada.ID})
		assert.Equal(t, submission.ErrNotFound, errors.Cause(err))
	})

	t.Run("latest wins", func(t *testing.T) {
		first, err := env.SubmissionSvc.Submit(ctx, tsk.ID, pdf("v1.pdf", "one"))
		require.NoError(t, err)
		_, err = env.SubmissionSvc.Grade(testutil.SessionCtx(mentor), first.ID, submission.GradeRequest{Grade: testutil.IntPtr(70)})
		require.NoError(t, err)

		second, err := env.SubmissionSvc.Submit(ctx, tsk.ID, pdf("v2.pdf", "two"))
		require.NoError(t, err)
		assert.Equal(t, "v2.pdf", second.FileName)
		assert.False(t, second.IsGraded())

		mine, err := env.SubmissionSvc.ListMine(ctx)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "v2.pdf", mine[0].FileName)
		assert.Nil(t, mine[0].Grade)

		obj, ok := env.Storage.Get("submissions/" + tsk.ID + "/" + ada.ID + "/v2.pdf")
		require.True(t, ok)
		assert.Equal(t, "application/pdf", obj.ContentType)
		_, ok = env.Storage.Get("submissions/" + tsk.ID + "/" + ada.ID + "/v1.pdf")
		assert.False(t, ok, "the replaced file is removed")
		assert.Equal(t, 1, env.Storage.Len())

		// same name: the upload overwrote it in place
		_, err = env.SubmissionSvc.Submit(ctx, tsk.ID, pdf("v2.pdf", "two again"))
		require.NoError(t, err)
		obj, ok = env.Storage.Get("submissions/" + tsk.ID + "/" + ada.ID + "/v2.pdf")
		require.True(t, ok)
		assert.Equal(t, []byte("two again"), obj.Data)
	})

	t.Run("cleanup failure keeps the submission", func(t *testing.T) {
		env.Storage.DeleteErr = errors.New("access denied")
		defer func() { env.Storage.DeleteErr = nil }()

		s, err := env.SubmissionSvc.Submit(ctx, tsk.ID, pdf("v3.pdf", "three"))
		require.NoError(t, err)
		assert.Equal(t, "v3.pdf", s.FileName)
		_, ok := env.Storage.Get("submissions/" + tsk.ID + "/" + ada.ID + "/v2.pdf")
		assert.True(t, ok)
	})
}

func TestService_Grade(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	admin := testutil.CreateAdmin(t, env.AccountRepo, "Admin", "admin@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)

	sub, err := env.SubmissionSvc.Submit(testutil.SessionCtx(ada), tsk.ID, pdf("report.pdf", "%PDF"))
	require.NoError(t, err)

	_, err = env.SubmissionSvc.Grade(testutil.SessionCtx(ada), sub.ID, submission.GradeRequest{Grade: testutil.IntPtr(100)})
	assert.Equal(t, core.ErrForbidden, err)

	_, err = env.SubmissionSvc.Grade(testutil.SessionCtx(mentor), sub.ID, submission.GradeRequest{Grade: testutil.IntPtr(101)})
	assert.True(t, core.IsValidationError(err))

	rubric := &submission.Rubric{Design: "tidy", Clarity: "good"}
	got, err := env.SubmissionSvc.Grade(testutil.SessionCtx(mentor), sub.ID, submission.GradeRequest{
		Grade:    testutil.IntPtr(88),
		Feedback: "  Solid  ",
		Rubric:   rubric,
	})
	require.NoError(t, err)
	assert.Equal(t, 88, *got.Grade)
	assert.Equal(t, "Solid", *got.Feedback)
	assert.Equal(t, rubric, got.Rubric)
	assert.Equal(t, mentor.ID, got.GradedBy)
	assert.False(t, got.GradedAt.IsZero())

	// admins may regrade; the latest grade wins
	got, err = env.SubmissionSvc.Grade(testutil.SessionCtx(admin), sub.ID, submission.GradeRequest{Grade: testutil.IntPtr(15), MaxGrade: 20})
	require.NoError(t, err)
	assert.Equal(t, 15, *got.Grade)
	assert.Equal(t, admin.ID, got.GradedBy)

	stored, err := env.SubmissionSvc.Get(testutil.SessionCtx(ada), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, *stored.Grade)
	assert.Equal(t, "", *stored.Feedback)
}

func TestService_ListByTask(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	bob := testutil.CreateStudent(t, env.AccountRepo, "Bob", "bob@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada, bob)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)

	for _, student := range []account.Account{ada, bob} {
		_, err := env.SubmissionSvc.Submit(testutil.SessionCtx(student), tsk.ID, pdf("report.pdf", "%PDF"))
		require.NoError(t, err)
	}

	_, err := env.SubmissionSvc.ListByTask(testutil.SessionCtx(ada), tsk.ID)
	assert.Equal(t, core.ErrForbidden, err)

	subs, err := env.SubmissionSvc.ListByTask(testutil.SessionCtx(mentor), tsk.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.StudentName)
	}
	assert.ElementsMatch(t, []string{"Ada", "Bob"}, names)
}

func TestService_Progress(t *testing.T) {
	env := testutil.NewEnv(t)
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ada := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ALPHA1", mentor, ada)
	ctx := testutil.SessionCtx(ada)

	got, err := env.SubmissionSvc.Progress(ctx, grp.ID)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = env.SubmissionSvc.Progress(testutil.SessionCtx(mentor), grp.ID)
	assert.Equal(t, core.ErrForbidden, err)

	t1 := testutil.CreateTask(t, env.TaskRepo, grp, "One", task.StatusTodo)
	testutil.CreateTask(t, env.TaskRepo, grp, "Two", task.StatusTodo)
	testutil.CreateTask(t, env.TaskRepo, grp, "Three", task.StatusTodo)

	_, err = env.SubmissionSvc.Submit(ctx, t1.ID, pdf("one.pdf", "1"))
	require.NoError(t, err)

	got, err = env.SubmissionSvc.Progress(ctx, grp.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, got)
}
