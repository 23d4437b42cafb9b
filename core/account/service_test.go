package account_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	emailsvc "github.com/trezcool/trackit/services/email"
	"github.com/trezcool/trackit/tests"
)

const strongPwd = "Tr4ck!tPwd"

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateAdmin(t, env.AccountRepo, "Admin", "admin@test.io")
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")

	newAcc := func(email string, role account.Role) account.NewAccount {
		return account.NewAccount{Name: " Ada ", Email: email, Role: role, Password: strongPwd, PasswordConfirm: strongPwd}
	}

	tests := []struct {
		name    string
		ctx     context.Context
		na      account.NewAccount
		wantErr error
	}{
		{name: "anonymous admin", ctx: context.Background(), na: newAcc("a1@test.io", account.RoleAdmin), wantErr: core.ErrUnauthorized},
		{name: "mentor registers admin", ctx: testutil.SessionCtx(mentor), na: newAcc("a2@test.io", account.RoleAdmin), wantErr: core.ErrForbidden},
		{name: "admin registers admin", ctx: testutil.SessionCtx(admin), na: newAcc("a3@test.io", account.RoleAdmin)},
		{name: "self registered student", ctx: context.Background(), na: newAcc(" Student@Test.io ", account.RoleStudent)},
		{name: "self registered mentor", ctx: context.Background(), na: newAcc("m2@test.io", account.RoleMentor)},
		{name: "duplicate email", ctx: context.Background(), na: newAcc("student@test.io", account.RoleStudent), wantErr: account.ErrEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := env.AccountSvc.Register(tt.ctx, tt.na)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Ada", acc.Name)
			assert.Equal(t, core.CleanString(tt.na.Email, true), acc.Email)
			assert.Equal(t, tt.na.Role, acc.Role)
			assert.True(t, acc.IsActive)
			assert.NoError(t, acc.CheckPassword(strongPwd))
		})
	}

	t.Run("unknown role", func(t *testing.T) {
		_, err := env.AccountSvc.Register(context.Background(), newAcc("x@test.io", 0))
		assert.EqualError(t, err, "role: unknown role")
	})
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := testutil.CreateAccount(t, env.AccountRepo, "Ada", "ada@test.io", "SAP100", strongPwd, account.RoleStudent, true)
	testutil.CreateAccount(t, env.AccountRepo, "Eve", "eve@test.io", "", strongPwd, account.RoleStudent, false)

	tests := []struct {
		name       string
		identifier string
		pwd        string
		wantErr    error
	}{
		{name: "blank identifier", identifier: " ", pwd: strongPwd},
		{name: "unknown SAP ID", identifier: "SAP999", pwd: strongPwd, wantErr: account.ErrSAPIDNotFound},
		{name: "unknown email", identifier: "nobody@test.io", pwd: strongPwd, wantErr: account.ErrInvalidCredentials},
		{name: "wrong password", identifier: ada.Email, pwd: "nope", wantErr: account.ErrInvalidCredentials},
		{name: "deactivated", identifier: "eve@test.io", pwd: strongPwd, wantErr: account.ErrAccountDeactivated},
		{name: "by email", identifier: " ADA@test.io ", pwd: strongPwd},
		{name: "by SAP ID", identifier: "SAP100", pwd: strongPwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := env.AccountSvc.Authenticate(context.Background(), tt.identifier, tt.pwd)
			switch {
			case tt.identifier == " ":
				assert.True(t, core.IsValidationError(err))
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, ada.ID, acc.ID)
				assert.False(t, acc.LastLogin.IsZero())
			}
		})
	}
}

func TestService_passwordReset(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := testutil.CreateAccount(t, env.AccountRepo, "Ada", "ada@test.io", "", strongPwd, account.RoleStudent, true)
	testutil.CreateAccount(t, env.AccountRepo, "Eve", "eve@test.io", "", strongPwd, account.RoleStudent, false)

	assert.Equal(t, account.ErrNotFound, errors.Cause(env.AccountSvc.RequestPasswordReset(context.Background(), "nobody@test.io", "")))

	// inactive accounts get no mail
	require.NoError(t, env.AccountSvc.RequestPasswordReset(context.Background(), "eve@test.io", ""))
	assert.Empty(t, emailsvc.SentMessages())

	require.NoError(t, env.AccountSvc.RequestPasswordReset(context.Background(), "ADA@test.io", "https://app.test/reset"))
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, ada.Email, sent[0].To[0].Address)

	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	link, err := url.Parse(data["Link"].(string))
	require.NoError(t, err)
	assert.Equal(t, "app.test", link.Host)
	assert.Equal(t, "/reset", link.Path)
	uid, token := link.Query().Get("uid"), link.Query().Get("token")

	const newPwd = "N3w-Passw0rd"
	err = env.AccountSvc.ResetPassword(context.Background(), account.ResetPassword{UID: uid, Token: "bad-token", Password: newPwd, PasswordConfirm: newPwd})
	assert.EqualError(t, err, "the password reset link is invalid or has expired")

	require.NoError(t, env.AccountSvc.ResetPassword(context.Background(), account.ResetPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}))

	acc, err := env.AccountSvc.Authenticate(context.Background(), ada.Email, newPwd)
	require.NoError(t, err)

	// the token is bound to the old password hash
	err = env.AccountSvc.ResetPassword(context.Background(), account.ResetPassword{UID: uid, Token: token, Password: strongPwd, PasswordConfirm: strongPwd})
	assert.EqualError(t, err, "the password reset link is invalid or has expired")

	ctx := testutil.SessionCtx(acc)
	err = env.AccountSvc.UpdatePassword(ctx, account.UpdatePassword{CurrentPassword: "wrong", Password: strongPwd, PasswordConfirm: strongPwd})
	assert.EqualError(t, err, "current_password: wrong password")
	require.NoError(t, env.AccountSvc.UpdatePassword(ctx, account.UpdatePassword{CurrentPassword: newPwd, Password: strongPwd, PasswordConfirm: strongPwd}))
	_, err = env.AccountSvc.Authenticate(context.Background(), ada.Email, strongPwd)
	assert.NoError(t, err)
}

func TestService_SetActive(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateAdmin(t, env.AccountRepo, "Admin", "admin@test.io")
	mentor := testutil.CreateMentor(t, env.AccountRepo, "Mentor", "mentor@test.io")
	ctx := testutil.SessionCtx(admin)

	_, err := env.AccountSvc.SetActive(testutil.SessionCtx(mentor), admin.ID, false)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = env.AccountSvc.SetActive(ctx, admin.ID, false)
	assert.Equal(t, core.ErrForbidden, err)
	_, err = env.AccountSvc.SetActive(ctx, "nope", false)
	assert.Equal(t, account.ErrNotFound, errors.Cause(err))

	acc, err := env.AccountSvc.SetActive(ctx, mentor.ID, false)
	require.NoError(t, err)
	assert.False(t, acc.IsActive)

	accs, err := env.AccountSvc.Query(ctx, &account.QueryFilter{IsActive: testutil.BoolPtr(false)}, nil)
	require.NoError(t, err)
	require.Len(t, accs, 1)
	assert.Equal(t, mentor.ID, accs[0].ID)

	_, err = env.AccountSvc.Query(testutil.SessionCtx(mentor), nil, nil)
	assert.Equal(t, core.ErrForbidden, err)
}
