package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const password = "correct-horse"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t     *testing.T
	app   *fiber.App
	repos repository.Set

	acme domain.Company
	hans domain.Contact
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "helpdesk-test", Env: "test", Version: "test"},
		Auth: config.AuthConfig{
			JWTSecret:             "access-secret",
			JWTRefreshSecret:      "refresh-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  24,
			BcryptCost:            4,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:       true,
			AuthMax:       20,
			AuthWindowMin: 15,
			APIMax:        1000,
			APIWindowSec:  60,
		},
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, cfg *config.Config, required map[string]handlers.Pinger) *testServer {
	t.Helper()
	repos := memory.NewStore().Repositories()
	services := service.NewServices(*cfg, repos, service.Options{Logger: zap.NewNop()})
	app := NewServer(ServerDependencies{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Metrics:  observability.NewMetrics(),
		Services: services,
		Required: required,
	})

	s := &testServer{t: t, app: app, repos: repos}
	ctx := context.Background()
	for _, u := range []struct {
		name, email string
		role        domain.Role
	}{
		{"Ada Admin", "ada@desk.test", domain.RoleAdmin},
		{"Emil Employee", "emil@desk.test", domain.RoleEmployee},
		{"Hans Kunde", "hans@acme.test", domain.RoleCustomer},
	} {
		hash, err := auth.HashPassword(password, 4)
		require.NoError(t, err)
		require.NoError(t, repos.Users.Create(ctx, &domain.User{
			Name: u.name, Email: u.email, PasswordHash: hash, Role: u.role, IsActive: true,
		}))
	}
	s.acme = domain.Company{Name: "Acme", Email: "info@acme.test"}
	require.NoError(t, repos.Companies.Create(ctx, &s.acme))
	s.hans = domain.Contact{Name: "Hans Kunde", Email: "hans@acme.test", CompanyID: s.acme.ID}
	require.NoError(t, repos.Contacts.Create(ctx, &s.hans))
	return s
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderUserAgent, "helpdesk-test/1")
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	return resp.StatusCode, decode(s.t, resp)
}

func decode(t *testing.T, resp *stdhttp.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return env
}

func (s *testServer) login(email string) map[string]any {
	s.t.Helper()
	status, env := s.do(fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, fiber.StatusOK, status)
	var out map[string]any
	require.NoError(s.t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) token(email string) string {
	return s.login(email)["access_token"].(string)
}

func TestHealthProbes(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	status, _ := s.do(fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	down := newTestServer(t, testConfig(), map[string]handlers.Pinger{"postgres": failingPinger{}})
	status, env := down.do(fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	s.do(fiber.MethodGet, "/health/live", "", nil)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "helpdesk_http_requests_total")
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	session := s.login("emil@desk.test")
	assert.NotEmpty(t, session["refresh_token"])
	user := session["user"].(map[string]any)
	assert.Equal(t, "emil@desk.test", user["email"])
	assert.NotContains(t, user, "password_hash")

	status, env := s.do(fiber.MethodGet, "/api/me", session["access_token"].(string), nil)
	require.Equal(t, fiber.StatusOK, status)
	var me map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "Emil Employee", me["name"])

	status, env = s.do(fiber.MethodGet, "/api/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	status, _ = s.do(fiber.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	status, unknown := s.do(fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@desk.test", "password": password})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, wrong := s.do(fiber.MethodPost, "/api/auth/login", "", map[string]string{"email": "emil@desk.test", "password": "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, unknown.Error)
	require.NotNil(t, wrong.Error)
	assert.Equal(t, unknown.Error.Message, wrong.Error.Message)
}

func TestRefreshOverHTTP(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	session := s.login("hans@acme.test")
	refresh := session["refresh_token"].(string)

	status, env := s.do(fiber.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, fiber.StatusOK, status)
	var rotated map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &rotated))
	assert.NotEqual(t, refresh, rotated["refresh_token"])

	status, _ = s.do(fiber.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, fiber.StatusUnauthorized, status, "a rotated token cannot be replayed")

	status, env = s.do(fiber.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": ""})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	session := s.login("emil@desk.test")

	status, env := s.do(fiber.MethodPost, "/api/auth/logout", session["access_token"].(string), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"success":true}`, string(env.Data))
	status, _ = s.do(fiber.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": session["refresh_token"].(string)})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	employee := s.token("emil@desk.test")
	customer := s.token("hans@acme.test")

	status, env := s.do(fiber.MethodPost, "/api/tickets", employee, map[string]any{
		"title": "Printer on fire", "description": "smoke everywhere",
		"company_id": s.acme.ID, "contact_id": s.hans.ID, "priority": "HIGH",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	var ticket map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	id := ticket["id"].(string)
	assert.Equal(t, "NEW", ticket["status"])

	status, _ = s.do(fiber.MethodPost, "/api/tickets/"+id+"/comments", employee, map[string]any{"content": "checking wiring", "is_internal": true})
	require.Equal(t, fiber.StatusCreated, status)

	status, env = s.do(fiber.MethodGet, "/api/tickets/"+id, customer, nil)
	require.Equal(t, fiber.StatusOK, status)
	var detail struct {
		Comments    []map[string]any `json:"comments"`
		TimeEntries []map[string]any `json:"time_entries"`
		History     []map[string]any `json:"history"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Empty(t, detail.Comments, "internal comments are hidden from customers")
	assert.Empty(t, detail.TimeEntries)
	assert.NotEmpty(t, detail.History)

	status, env = s.do(fiber.MethodPatch, "/api/tickets/"+id, customer, map[string]any{"status": "CLOSED"})
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = s.do(fiber.MethodPatch, "/api/tickets/"+id, employee, map[string]any{"status": "IN_PROGRESS"})
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	assert.Equal(t, "IN_PROGRESS", ticket["status"])

	status, env = s.do(fiber.MethodGet, "/api/tickets?status=NOT_CLOSED", customer, nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	status, _ = s.do(fiber.MethodDelete, "/api/tickets/"+id, employee, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(fiber.MethodDelete, "/api/tickets/"+id, s.token("ada@desk.test"), nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestTimeEntryRejectsMalformedRange(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	employee := s.token("emil@desk.test")

	status, env := s.do(fiber.MethodGet, "/api/time-entries?from=yesterday", employee, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_USER_INPUT", env.Error.Code)

	status, _ = s.do(fiber.MethodGet, "/api/time-entries/mine?from=2026-03-01T00:00:00Z", employee, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(fiber.MethodGet, "/api/time-entries", s.token("hans@acme.test"), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestContactsMe(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	status, env := s.do(fiber.MethodGet, "/api/contacts/me", s.token("hans@acme.test"), nil)
	require.Equal(t, fiber.StatusOK, status)
	var contact map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &contact))
	assert.Equal(t, s.hans.ID, contact["id"])

	status, _ = s.do(fiber.MethodGet, "/api/contacts/me", s.token("emil@desk.test"), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestAuditLogsCaptureRequestInfo(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	admin := s.token("ada@desk.test")

	status, env := s.do(fiber.MethodGet, "/api/audit-logs?action=LOGIN_SUCCESS", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "helpdesk-test/1", logs[0]["user_agent"])
	assert.Equal(t, "ada@desk.test", logs[0]["user_email"])

	status, _ = s.do(fiber.MethodGet, "/api/audit-logs", s.token("emil@desk.test"), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.AuthMax = 2
	s := newTestServer(t, cfg, nil)

	creds := map[string]string{"email": "emil@desk.test", "password": "wrong-password"}
	for i := 0; i < 2; i++ {
		status, _ := s.do(fiber.MethodPost, "/api/auth/login", "", creds)
		require.Equal(t, fiber.StatusUnauthorized, status)
	}
	status, env := s.do(fiber.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	status, _ = s.do(fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status, "probes are outside the limiter")
}

type countingResolver struct{ calls atomic.Int32 }

func (r *countingResolver) ResolvePrincipal(context.Context, string) *domain.Principal {
	r.calls.Add(1)
	return nil
}

func TestAPILimiterRunsBeforePrincipalLookup(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.APIMax = 1
	services := service.NewServices(*cfg, memory.NewStore().Repositories(), service.Options{Logger: zap.NewNop()})
	resolver := &countingResolver{}

	app := fiber.New(FiberConfig(MiddlewareConfig{Logger: zap.NewNop(), Config: cfg}))
	RegisterRoutes(app, RouteConfig{
		Config:         cfg,
		Metrics:        observability.NewMetrics(),
		AuthMiddleware: auth.NewAuthMiddleware(resolver),
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil),
		Auth:           handlers.NewAuthHandler(services.Auth),
		Users:          handlers.NewUsersHandler(services.Users),
		Tickets:        handlers.NewTicketsHandler(services.Tickets),
		Comments:       handlers.NewCommentsHandler(services.Comments),
		TimeEntries:    handlers.NewTimeEntriesHandler(services.TimeEntries),
		Companies:      handlers.NewCompaniesHandler(services.Companies),
		Audit:          handlers.NewAuditHandler(services.Audit),
	})

	call := func() int {
		req := httptest.NewRequest(fiber.MethodGet, "/api/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer some-token")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusUnauthorized, call())
	assert.Equal(t, fiber.StatusTooManyRequests, call())
	assert.EqualValues(t, 1, resolver.calls.Load())
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	status, env := s.do(fiber.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestErrorHandlerHidesDetailsInProduction(t *testing.T) {
	for _, production := range []bool{false, true} {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), nil, production)})
		app.Get("/", func(c *fiber.Ctx) error {
			return apperrors.NewValidationError("invalid ticket", map[string]any{"field": "title"})
		})
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		env := decode(t, resp)
		require.NotNil(t, env.Error)
		assert.Equal(t, production, env.Error.Details == nil)
	}
}

func TestPanicsRenderInternalError(t *testing.T) {
	cfg := testConfig()
	mc := MiddlewareConfig{Logger: zap.NewNop(), Config: cfg}
	app := fiber.New(FiberConfig(mc))
	RegisterMiddlewares(app, mc)
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	env := decode(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}

func TestInternalIPsSkipLimiter(t *testing.T) {
	assert.True(t, isInternalIP("127.0.0.1"))
	assert.True(t, isInternalIP("10.0.0.4"))
	assert.True(t, isInternalIP("192.168.1.20"))
	assert.False(t, isInternalIP("203.0.113.9"))
	assert.False(t, isInternalIP("not-an-ip"))
}
