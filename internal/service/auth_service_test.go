package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestLoginIssuesPairAndStoresRefreshToken(t *testing.T) {
	e := newEnv(t)

	result, err := e.auth.Login(e.ctx, "  EMIL@desk.test ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, e.employee.ID, result.User.ID)
	assert.NotEqual(t, result.AccessToken, result.RefreshToken)
	require.NotNil(t, result.User.LastLogin)
	assert.True(t, result.User.LastLogin.Equal(e.clock))

	stored, err := e.repos.Users.GetByID(e.ctx, e.employee.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, result.RefreshToken, *stored.RefreshToken)
	assert.Contains(t, e.auditActions(), audit.ActionLoginSuccess)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	inactive := e.addUser("Old Timer", "old@desk.test", domain.RoleEmployee)
	require.NoError(t, e.repos.Users.Update(e.ctx, &domain.User{
		ID: inactive.ID, Name: inactive.Name, Email: inactive.Email, Role: inactive.Role, IsActive: false,
	}))

	cases := map[string][2]string{
		"unknown email":  {"nobody@desk.test", testPassword},
		"wrong password": {"emil@desk.test", "wrong-password"},
		"inactive user":  {"old@desk.test", testPassword},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.auth.Login(e.ctx, creds[0], creds[1])
			requireCode(t, err, apperrors.CodeUnauthenticated)
			assert.Equal(t, msgInvalidCredentials, err.Error())
		})
	}

	failed := 0
	for _, action := range e.auditActions() {
		if action == audit.ActionLoginFailed {
			failed++
		}
	}
	assert.Equal(t, len(cases), failed)
}

func TestRefreshRotatesAndRejectsStaleToken(t *testing.T) {
	e := newEnv(t)
	first, err := e.auth.Login(e.ctx, "emil@desk.test", testPassword)
	require.NoError(t, err)

	second, err := e.auth.Refresh(e.ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = e.auth.Refresh(e.ctx, first.RefreshToken)
	requireCode(t, err, apperrors.CodeUnauthenticated)
	assert.Equal(t, msgInvalidRefresh, err.Error())

	third, err := e.auth.Refresh(e.ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, third.AccessToken)

	actions := e.auditActions()
	assert.Contains(t, actions, audit.ActionTokenRefresh)
	assert.Contains(t, actions, audit.ActionLoginFailed)
}

func TestRefreshRejectsWrongTokenKinds(t *testing.T) {
	e := newEnv(t)
	pair, err := e.auth.IssueTokenPair(e.ctx, e.employee.ID)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"access token": pair.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.auth.Refresh(e.ctx, token)
			requireCode(t, err, apperrors.CodeUnauthenticated)
		})
	}
}

func TestRefreshAfterExpiry(t *testing.T) {
	e := newEnv(t)
	pair, err := e.auth.IssueTokenPair(e.ctx, e.employee.ID)
	require.NoError(t, err)

	e.clock = e.clock.Add(25 * time.Hour)
	_, err = e.auth.Refresh(e.ctx, pair.RefreshToken)
	requireCode(t, err, apperrors.CodeUnauthenticated)
}

func TestRevokeThenRefreshFails(t *testing.T) {
	e := newEnv(t)
	result, err := e.auth.Login(e.ctx, "hans@acme.test", testPassword)
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(e.ctx, e.customer))
	require.NoError(t, e.auth.Revoke(e.ctx, e.customer.ID))
	require.NoError(t, e.auth.Revoke(e.ctx, "missing-user"))

	_, err = e.auth.Refresh(e.ctx, result.RefreshToken)
	requireCode(t, err, apperrors.CodeUnauthenticated)
	assert.Contains(t, e.auditActions(), audit.ActionLogout)
}

func TestResolvePrincipal(t *testing.T) {
	e := newEnv(t)
	pair, err := e.auth.IssueTokenPair(e.ctx, e.employee.ID)
	require.NoError(t, err)

	principal := e.auth.ResolvePrincipal(e.ctx, pair.AccessToken)
	require.NotNil(t, principal)
	assert.Equal(t, e.employee.ID, principal.ID)
	assert.Equal(t, domain.RoleEmployee, principal.Role)

	assert.Nil(t, e.auth.ResolvePrincipal(e.ctx, pair.RefreshToken), "refresh token must not authenticate")
	assert.Nil(t, e.auth.ResolvePrincipal(e.ctx, ""))

	user, err := e.repos.Users.GetByID(e.ctx, e.employee.ID)
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, e.repos.Users.Update(e.ctx, user))
	assert.Nil(t, e.auth.ResolvePrincipal(e.ctx, pair.AccessToken), "deactivation applies immediately")

	ghost, err := e.auth.IssueTokenPair(e.ctx, e.admin.ID)
	require.NoError(t, err)
	require.NoError(t, e.repos.Users.Delete(e.ctx, e.admin.ID))
	assert.Nil(t, e.auth.ResolvePrincipal(e.ctx, ghost.AccessToken))
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	result, err := e.auth.Register(e.ctx, " Neu Kunde ", "Neu@Acme.test", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, result.User.Role)
	assert.Equal(t, "neu@acme.test", result.User.Email)
	assert.Equal(t, "Neu Kunde", result.User.Name)
	assert.NotNil(t, e.auth.ResolvePrincipal(e.ctx, result.AccessToken))

	_, err = e.auth.Register(e.ctx, "Dup", "neu@acme.test", "long-enough")
	requireCode(t, err, apperrors.CodeBadUserInput)

	_, err = e.auth.Register(e.ctx, "Short", "short@acme.test", "short")
	requireCode(t, err, apperrors.CodeBadUserInput)

	_, err = e.auth.Register(e.ctx, "Bad", "not-an-email", "long-enough")
	requireCode(t, err, apperrors.CodeBadUserInput)
	assert.Contains(t, e.auditActions(), audit.ActionRegister)
}
