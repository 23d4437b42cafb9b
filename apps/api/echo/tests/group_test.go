package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/trackit/apps/api/echo"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/outbox"
	"github.com/trezcool/trackit/core/task"
	"github.com/trezcool/trackit/tests"
)

func Test_groupApi_create(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grouped := testutil.CreateStudent(t, env.AccountRepo, "Bob", "bob@test.io")
	testutil.CreateGroup(t, env.GroupRepo, "Other", "Sem 3", "OTHER1", mentor, grouped)
	newcomer := testutil.CreateStudent(t, env.AccountRepo, "Cy", "cy@test.io")

	path := "/v1/groups"
	body := func(name, semester string, emails ...string) []byte {
		return marchallObj(t, group.NewGroup{Name: name, Semester: semester, MemberEmails: emails})
	}

	runHTTPTests(t, srv, []httpTest{
		{name: "auth required", method: http.MethodPost, path: path, body: body("G", "Sem 3"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "mentor required", method: http.MethodPost, path: path, body: body("G", "Sem 3"), token: getToken(t, env, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "blank fields", method: http.MethodPost, path: path, body: body("", ""), token: getToken(t, env, mentor),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required", "semester": "this field is required"}),
		},
		{
			name: "semester out of range", method: http.MethodPost, path: path, body: body("G", "Sem 9"), token: getToken(t, env, mentor),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"semester": "semester must be between Sem 3 and Sem 8"}),
		},
		{
			name: "invalid candidates", method: http.MethodPost, path: path, body: body("G", "Sem 3", "ghost@test.io", "bob@test.io"),
			token: getToken(t, env, mentor), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"member_emails": "not registered as students: ghost@test.io; already in a group: bob@test.io",
			}),
		},
	})

	grps, err := env.GroupRepo.QueryGroups(context.Background(), group.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, grps, 1, "rejected creations must not leave a group behind")

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, env, mentor), body(" Alpha ", "sem 3", student.Email, newcomer.Email))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var grp group.Group
		unmarshall(t, rec.Body.Bytes(), &grp)
		assert.Equal(t, "Alpha", grp.Name)
		assert.Equal(t, "Sem 3", grp.Semester)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, grp.JoinCode)
		assert.Equal(t, mentor.ID, grp.CreatedBy)

		members, err := env.GroupRepo.QueryMemberships(context.Background(), group.MembershipFilter{GroupID: grp.ID})
		require.NoError(t, err)
		assert.Len(t, members, 2)

		events, err := env.OutboxRepo.QueryEvents(context.Background(), outbox.StatusPending, 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		inv, err := events[0].Invitation()
		require.NoError(t, err)
		assert.Equal(t, outbox.Invitation{Email: student.Email, JoinCode: grp.JoinCode, GroupName: "Alpha"}, inv)
	})
}

func Test_groupApi_joinAndLeave(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ABC123", mentor)
	token := getToken(t, env, student)

	join := func(code string) []byte { return marchallObj(t, JoinRequest{Code: code}) }

	runHTTPTests(t, srv, []httpTest{
		{
			name: "students only", method: http.MethodPost, path: "/v1/groups/join", body: join("ABC123"), token: getToken(t, env, mentor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown code", method: http.MethodPost, path: "/v1/groups/join", body: join("ZZZ999"), token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "no group matches this join code"}),
		},
		{name: "lower case code", method: http.MethodPost, path: "/v1/groups/join", body: join(" abc123 "), token: token, wantCode: http.StatusOK, wantData: marchallObj(t, grp)},
		{
			name: "already member", method: http.MethodPost, path: "/v1/groups/join", body: join("ABC123"), token: token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "student already belongs to a group"}),
		},
		{name: "my groups", path: "/v1/groups", token: token, wantCode: http.StatusOK, wantData: marchallList(t, grp)},
		{name: "leave", method: http.MethodPost, path: "/v1/groups/leave", token: token, wantCode: http.StatusNoContent},
		{name: "leave again", method: http.MethodPost, path: "/v1/groups/leave", token: token, wantCode: http.StatusNoContent},
		{name: "no group", path: "/v1/groups", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}

func Test_groupApi_manage(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	other := testutil.CreateMentor(t, env.AccountRepo, "Other", "other@test.io")
	admin := testutil.CreateAdmin(t, env.AccountRepo, "Admin", "admin@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ABC123", mentor, student)
	final := testutil.CreateGroup(t, env.GroupRepo, "Omega", "Sem 8", "OMEGA8", mentor)

	mentorToken := getToken(t, env, mentor)
	promoted := grp
	promoted.Semester = "Sem 4"

	t.Run("promote", func(t *testing.T) {
		runHTTPTests(t, srv, []httpTest{
			{
				name: "not owner", method: http.MethodPost, path: "/v1/groups/" + grp.ID + "/promote", token: getToken(t, env, other),
				wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
			},
			{
				name: "member student", method: http.MethodPost, path: "/v1/groups/" + grp.ID + "/promote", token: getToken(t, env, student),
				wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
			},
			{
				name: "final semester", method: http.MethodPost, path: "/v1/groups/" + final.ID + "/promote", token: mentorToken,
				wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "group is already at the final semester"}),
			},
			{
				name: "unknown group", method: http.MethodPost, path: "/v1/groups/nope/promote", token: mentorToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "group not found"}),
			},
		})

		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/promote", mentorToken)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got group.Group
		unmarshall(t, rec.Body.Bytes(), &got)
		assert.Equal(t, "Sem 4", got.Semester)
	})

	t.Run("rotate code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/groups/"+grp.ID+"/rotate-code", mentorToken)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got group.Group
		unmarshall(t, rec.Body.Bytes(), &got)
		assert.NotEqual(t, "ABC123", got.JoinCode)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, got.JoinCode)
	})

	t.Run("members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/groups/"+grp.ID+"/members", getToken(t, env, student))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var members []group.Member
		unmarshall(t, rec.Body.Bytes(), &members)
		require.Len(t, members, 1)
		assert.Equal(t, student.ID, members[0].AccountID)
		assert.Equal(t, "Ada", members[0].Name)
	})

	t.Run("add members by invitation", func(t *testing.T) {
		newcomer := testutil.CreateStudent(t, env.AccountRepo, "Cy", "cy@test.io")
		body := marchallObj(t, group.AddMembers{Emails: []string{newcomer.Email}, Mode: group.AddInvite})
		runHTTPTests(t, srv, []httpTest{
			{
				name: "invite", method: http.MethodPost, path: "/v1/groups/" + grp.ID + "/members", body: body, token: mentorToken,
				wantCode: http.StatusOK, wantData: marchallList(t, group.MemberResult{Email: newcomer.Email, Status: group.MemberInvited}),
			},
		})
		_, err := env.GroupRepo.GetMembership(context.Background(), newcomer.Email)
		assert.Equal(t, group.ErrNotMember, errors.Cause(err), "invited students join by themselves")
	})

	t.Run("remove member", func(t *testing.T) {
		runHTTPTests(t, srv, []httpTest{
			{name: "ok", method: http.MethodDelete, path: "/v1/groups/" + grp.ID + "/members/" + student.Email, token: mentorToken, wantCode: http.StatusNoContent},
			{
				name: "not a member", method: http.MethodDelete, path: "/v1/groups/" + grp.ID + "/members/" + student.Email, token: mentorToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student is not a member of any group"}),
			},
		})
	})

	t.Run("delete", func(t *testing.T) {
		tsk := testutil.CreateTask(t, env.TaskRepo, final, "Report", task.StatusTodo)
		runHTTPTests(t, srv, []httpTest{
			{name: "by admin", method: http.MethodDelete, path: "/v1/groups/" + final.ID, token: getToken(t, env, admin), wantCode: http.StatusNoContent},
			{
				name: "gone", path: "/v1/groups/" + final.ID, token: mentorToken,
				wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "group not found"}),
			},
		})
		_, err := env.TaskRepo.GetTask(context.Background(), tsk.ID)
		assert.Equal(t, task.ErrNotFound, err)
	})
}

func Test_groupApi_tasks(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ABC123", mentor, student)
	path := "/v1/groups/" + grp.ID + "/tasks"

	runHTTPTests(t, srv, []httpTest{
		{
			name: "student cannot create", method: http.MethodPost, path: path, token: getToken(t, env, student),
			body: marchallObj(t, task.NewTask{Title: "Wireframes"}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "title required", method: http.MethodPost, path: path, token: getToken(t, env, mentor),
			body: marchallObj(t, task.NewTask{Title: " "}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "points must be a number", method: http.MethodPost, path: path, token: getToken(t, env, mentor),
			body: []byte(`{"title": "Wireframes", "points": "ten"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"points": "points must be a number"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPost, path, getToken(t, env, mentor), marchallObj(t, task.NewTask{Title: "Wireframes", Points: 10}))
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created task.Task
	unmarshall(t, rec.Body.Bytes(), &created)
	assert.Equal(t, task.StatusTodo, created.Status)
	assert.Equal(t, task.PriorityMedium, created.Priority)
	assert.Equal(t, grp.ID, created.GroupID)

	runHTTPTests(t, srv, []httpTest{
		{name: "member lists", path: path, token: getToken(t, env, student), wantCode: http.StatusOK, wantData: marchallList(t, created)},
		{name: "status filter", path: path + "?status=done", token: getToken(t, env, student), wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "unknown status", path: path + "?status=archived", token: getToken(t, env, student), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "unknown task status"}),
		},
	})
}

func Test_groupApi_messages(t *testing.T) {
	srv, env := setup(t)

	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	outsider := testutil.CreateStudent(t, env.AccountRepo, "Eve", "eve@test.io")
	grp := testutil.CreateGroup(t, env.GroupRepo, "Alpha", "Sem 3", "ABC123", mentor, student)
	path := "/v1/groups/" + grp.ID + "/messages"

	runHTTPTests(t, srv, []httpTest{
		{
			name: "outsider", method: http.MethodPost, path: path, token: getToken(t, env, outsider),
			body: marchallObj(t, MessageRequest{Content: "hi"}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "empty", method: http.MethodPost, path: path, token: getToken(t, env, student),
			body: marchallObj(t, MessageRequest{Content: "  "}), wantCode: http.StatusBadRequest,
		},
		{name: "student", method: http.MethodPost, path: path, token: getToken(t, env, student), body: marchallObj(t, MessageRequest{Content: "hello"}), wantCode: http.StatusCreated},
		{name: "mentor", method: http.MethodPost, path: path, token: getToken(t, env, mentor), body: marchallObj(t, MessageRequest{Content: "welcome"}), wantCode: http.StatusCreated},
	})

	req, rec := newAuthRequest(http.MethodGet, path+"?limit=10", getToken(t, env, mentor))
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var msgs []struct {
		SenderName string `json:"sender_name"`
		Content    string `json:"content"`
	}
	unmarshall(t, rec.Body.Bytes(), &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "Ada", msgs[0].SenderName)
	assert.Equal(t, "welcome", msgs[1].Content)
}
