package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
)

func seedFixture() (repository.Set, *service.Services) {
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret: "a", JWTRefreshSecret: "b", AccessTokenTTLMinutes: 15, RefreshTokenTTLHours: 24, BcryptCost: 4,
	}}
	repos := memory.NewStore().Repositories()
	return repos, service.NewServices(cfg, repos, service.Options{})
}

func TestSeedAdminOnly(t *testing.T) {
	repos, services := seedFixture()
	ctx := context.Background()
	opts := seedOptions{AdminName: "Root", AdminEmail: "root@desk.test", AdminPassword: "bootstrap-pass"}

	report, err := seed(ctx, repos, services, 4, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:root@desk.test"}, report.Created)

	admin, err := repos.Users.GetByEmail(ctx, "root@desk.test")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	ok, err := auth.ComparePassword(admin.PasswordHash, "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeedDemoIsIdempotent(t *testing.T) {
	repos, services := seedFixture()
	ctx := context.Background()
	opts := seedOptions{
		AdminName: "Root", AdminEmail: "root@desk.test", AdminPassword: "bootstrap-pass",
		Demo: true, DemoPassword: "demo-password",
	}

	first, err := seed(ctx, repos, services, 4, opts)
	require.NoError(t, err)
	assert.Contains(t, first.Created, "ticket:"+demoTicketTitle)
	assert.Empty(t, first.Skipped)

	second, err := seed(ctx, repos, services, 4, opts)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Contains(t, second.Skipped, "ticket:"+demoTicketTitle)

	customer, err := services.Auth.Login(ctx, demoCustomerEmail, "demo-password")
	require.NoError(t, err)
	tickets, err := services.Tickets.Mine(ctx, customer.User.Principal())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	require.NotNil(t, tickets[0].WorkSummary)
	assert.Equal(t, "Initial triage", *tickets[0].WorkSummary)
}
