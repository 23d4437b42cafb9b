package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/trackit/apps/api/echo"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
	"github.com/trezcool/trackit/tests"
)

func Test_taskApi_submit(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	outsider := testutil.CreateStudent(t, env.AccountRepo, "Eve", "eve@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ABC123", mentor, student)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)
	path := "/v1/tasks/" + tsk.ID + "/submissions"

	t.Run("missing file", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, env, student))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		}, rec)
	})

	t.Run("mentor cannot submit", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, getToken(t, env, mentor), "report.pdf", []byte("%PDF"))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("outsider", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, getToken(t, env, outsider), "report.pdf", []byte("%PDF"))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("storage down", func(t *testing.T) {
		env.Storage.Err = errors.New("connection refused")
		defer func() { env.Storage.Err = nil }()

		req, rec := newUploadRequest(t, path, getToken(t, env, student), "report.pdf", []byte("%PDF"))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marchallObj(t, httpErr{Error: "Bad Gateway"})}, rec)

		subs, err := env.SubmissionRepo.QuerySubmissions(context.Background(), submission.QueryFilter{TaskID: tsk.ID})
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	var first submission.Submission
	t.Run("ok", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, getToken(t, env, student), "../../report.pdf", []byte("%PDF-1"))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		unmarshall(t, rec.Body.Bytes(), &first)
		assert.Equal(t, "report.pdf", first.FileName)
		wantPath := "submissions/" + tsk.ID + "/" + student.ID + "/report.pdf"
		assert.Equal(t, testutil.StorageBaseURL+"/"+wantPath, first.FileURL)
		assert.Nil(t, first.Grade)

		obj, ok := env.Storage.Get(wantPath)
		require.True(t, ok)
		assert.Equal(t, []byte("%PDF-1"), obj.Data)
	})

	t.Run("resubmission replaces", func(t *testing.T) {
		req, rec := newUploadRequest(t, path, getToken(t, env, student), "report-v2.pdf", []byte("%PDF-2"))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		subs, err := env.SubmissionRepo.QuerySubmissions(context.Background(), submission.QueryFilter{TaskID: tsk.ID})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "report-v2.pdf", subs[0].FileName)
	})

	t.Run("mentor lists", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, env, mentor))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var subs []submission.Submission
		unmarshall(t, rec.Body.Bytes(), &subs)
		require.Len(t, subs, 1)
		assert.Equal(t, "Ada", subs[0].StudentName)
		assert.Equal(t, student.Email, subs[0].StudentEmail)
	})

	t.Run("student cannot list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, env, student))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("progress", func(t *testing.T) {
		testutil.CreateTask(t, env.TaskRepo, grp, "Report", task.StatusTodo)
		testutil.CreateTask(t, env.TaskRepo, grp, "Demo", task.StatusTodo)

		req, rec := newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID+"/progress", getToken(t, env, student))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, ProgressResponse{Progress: 33})}, rec)
	})
}

func Test_submissionApi_grade(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	other := testutil.CreateMentor(t, env.AccountRepo, "Other", "other@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ABC123", mentor, student)
	tsk := testutil.CreateTask(t, env.TaskRepo, grp, "Wireframes", task.StatusTodo)

	sub, err := env.SubmissionSvc.Submit(testutil.SessionCtx(student), tsk.ID, submission.File{Name: "report.pdf", Body: strings.NewReader("%PDF")})
	require.NoError(t, err)
	path := "/v1/submissions/" + sub.ID + "/grade"
	token := getToken(t, env, mentor)

	runHTTPTests(t, srv, []httpTest{
		{
			name: "below range", method: http.MethodPut, path: path, token: token, body: []byte(`{"grade": -1}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be between 0 and 100"}),
		},
		{
			name: "above range", method: http.MethodPut, path: path, token: token, body: []byte(`{"grade": 101}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be between 0 and 100"}),
		},
		{
			name: "not a number", method: http.MethodPut, path: path, token: token, body: []byte(`{"grade": "A+"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be a whole number"}),
		},
		{
			name: "fraction", method: http.MethodPut, path: path, token: token, body: []byte(`{"grade": 9.5}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be a whole number"}),
		},
		{
			name: "missing", method: http.MethodPut, path: path, token: token, body: []byte(`{"feedback": "nice"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "this field is required"}),
		},
		{
			name: "other mentor", method: http.MethodPut, path: path, token: getToken(t, env, other), body: []byte(`{"grade": 80}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "student", method: http.MethodPut, path: path, token: getToken(t, env, student), body: []byte(`{"grade": 100}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown submission", method: http.MethodPut, path: "/v1/submissions/nope/grade", token: token, body: []byte(`{"grade": 80}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission not found"}),
		},
	})

	for _, grade := range []int{0, 100, 42} {
		req, rec := newAuthRequest(http.MethodPut, path, token, marchallObj(t, map[string]interface{}{
			"grade":    grade,
			"feedback": " Good work ",
			"rubric":   submission.Rubric{Design: "clean", Clarity: "ok"},
		}))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got submission.Submission
		unmarshall(t, rec.Body.Bytes(), &got)
		require.NotNil(t, got.Grade)
		assert.Equal(t, grade, *got.Grade)
		require.NotNil(t, got.Feedback)
		assert.Equal(t, "Good work", *got.Feedback)
		assert.Equal(t, mentor.ID, got.GradedBy)
	}

	runHTTPTests(t, srv, []httpTest{
		{name: "student reads the grade", path: "/v1/submissions/" + sub.ID, token: getToken(t, env, student), wantCode: http.StatusOK},
		{
			name: "other mentor cannot read", path: "/v1/submissions/" + sub.ID, token: getToken(t, env, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/submissions/mine", getToken(t, env, student))
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine []submission.Submission
	unmarshall(t, rec.Body.Bytes(), &mine)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Grade)
	assert.Equal(t, 42, *mine[0].Grade)
}
