package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/outbox"
	"github.com/trezcool/trackit/tests"
)

func Test_adminApi_accounts(t *testing.T) {
	srv, env := setup(t)

	admin := testutil.CreateAdmin(t, env.AccountRepo, "Admin", "admin@test.io")
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	student := testutil.CreateStudent(t, env.AccountRepo, "Ada", "ada@test.io")
	token := getToken(t, env, admin)

	runHTTPTests(t, srv, []httpTest{
		{name: "auth required", path: "/v1/admin/accounts", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admins only", path: "/v1/admin/accounts", token: getToken(t, env, mentor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "by role", path: "/v1/admin/accounts?role=student", token: token, wantCode: http.StatusOK, wantData: marchallList(t, student)},
		{name: "search", path: "/v1/admin/accounts?search=MENTOR", token: token, wantCode: http.StatusOK, wantData: marchallList(t, mentor)},
		{
			name: "cannot deactivate self", method: http.MethodPost, path: "/v1/admin/accounts/" + admin.ID + "/deactivate", token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown account", method: http.MethodPost, path: "/v1/admin/accounts/nope/deactivate", token: token,
			wantCode: http.StatusNotFound,
		},
	})

	t.Run("deactivate then activate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/accounts/"+student.ID+"/deactivate", token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// a deactivated account is locked out even with a valid token
		req, rec = newAuthRequest(http.MethodGet, "/v1/auth/me", getToken(t, env, student))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})}, rec)

		req, rec = newAuthRequest(http.MethodPost, "/v1/admin/accounts/"+student.ID+"/activate", token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		acc, err := env.AccountRepo.GetAccount(context.Background(), account.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.True(t, acc.IsActive)
	})
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, outbox.Event) error {
	return errors.New("smtp unavailable")
}

func Test_adminApi_outbox(t *testing.T) {
	srv, env := setup(t)

	admin := testutil.CreateAdmin(t, env.AccountRepo, "Admin", "admin@test.io")
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	token := getToken(t, env, admin)

	evt, err := env.OutboxSvc.Enqueue(context.Background(), outbox.KindGroupInvitation, outbox.Invitation{
		Email:     "ada@test.io",
		JoinCode:  "ABC123",
		GroupName: "Alpha",
	})
	require.NoError(t, err)

	relay := env.Relay(failingDispatcher{})
	for i := 0; i < env.Conf.Outbox.MaxAttempts; i++ {
		_, _, err = relay.ProcessOnce(context.Background())
		require.NoError(t, err)
	}

	runHTTPTests(t, srv, []httpTest{
		{
			name: "admins only", path: "/v1/admin/outbox/failed", token: getToken(t, env, mentor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown event", method: http.MethodPost, path: "/v1/admin/outbox/nope/retry", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "outbox event not found"}),
		},
	})

	t.Run("failed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/outbox/failed", token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var events []outbox.Event
		unmarshall(t, rec.Body.Bytes(), &events)
		require.Len(t, events, 1)
		assert.Equal(t, evt.ID, events[0].ID)
		assert.Equal(t, env.Conf.Outbox.MaxAttempts, events[0].Attempts)
		assert.Equal(t, "smtp unavailable", events[0].LastError)
	})

	t.Run("retry", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/outbox/"+evt.ID+"/retry", token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var e outbox.Event
		unmarshall(t, rec.Body.Bytes(), &e)
		assert.Equal(t, outbox.StatusPending, e.Status)
		assert.Zero(t, e.Attempts)

		req, rec = newAuthRequest(http.MethodPost, "/v1/admin/outbox/"+evt.ID+"/retry", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "event is pending"})}, rec)

		sent, failed, err := env.Relay(env.Invitations).ProcessOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Zero(t, failed)
	})
}
