package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const testPassword = "correct-horse"

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "access-secret",
			JWTRefreshSecret:      "refresh-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  24,
			BcryptCost:            4,
		},
	}
}

// recordingDispatcher keeps every published event.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type env struct {
	t          *testing.T
	ctx        context.Context
	repos      memory.Repositories
	dispatcher *recordingDispatcher
	clock      time.Time

	auth     *AuthService
	tickets  *TicketService
	comments *CommentService
	entries  *TimeEntryService
	company  *CompanyService
	users    *UserService
	audits   *AuditService

	admin    *domain.Principal
	employee *domain.Principal
	customer *domain.Principal
	stranger *domain.Principal

	acme    domain.Company
	hans    domain.Contact
	globex  domain.Company
	marge   domain.Contact
	unowned domain.Contact
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repos := memory.NewStore().Repositories()
	recorder := audit.NewRecorder(repos.AuditLogs, nil)
	pol := policy.New(repos.Tickets, repos.Contacts)
	dispatcher := &recordingDispatcher{}
	cfg := testConfig()

	e := &env{
		t:          t,
		ctx:        context.Background(),
		repos:      repos,
		dispatcher: dispatcher,
		clock:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	e.auth = NewAuthService(cfg, AuthDependencies{
		UserRepo: repos.Users,
		Audit:    recorder,
		Clock:    func() time.Time { return e.clock },
	})
	e.tickets = NewTicketService(TicketDependencies{
		TicketRepo:    repos.Tickets,
		CompanyRepo:   repos.Companies,
		ContactRepo:   repos.Contacts,
		UserRepo:      repos.Users,
		CommentRepo:   repos.Comments,
		TimeEntryRepo: repos.TimeEntries,
		HistoryRepo:   repos.History,
		Transactor:    repos.Transactor,
		Policy:        pol,
		Audit:         recorder,
		Dispatcher:    dispatcher,
	})
	e.comments = NewCommentService(CommentDependencies{
		CommentRepo: repos.Comments,
		HistoryRepo: repos.History,
		Transactor:  repos.Transactor,
		Policy:      pol,
		Audit:       recorder,
		Dispatcher:  dispatcher,
	})
	e.entries = NewTimeEntryService(TimeEntryDependencies{
		TimeEntryRepo: repos.TimeEntries,
		TicketRepo:    repos.Tickets,
		HistoryRepo:   repos.History,
		Transactor:    repos.Transactor,
		Policy:        pol,
		Audit:         recorder,
	})
	e.company = NewCompanyService(CompanyDependencies{
		CompanyRepo: repos.Companies,
		ContactRepo: repos.Contacts,
		TicketRepo:  repos.Tickets,
		Transactor:  repos.Transactor,
		Policy:      pol,
		Audit:       recorder,
	})
	e.users = NewUserService(UserDependencies{UserRepo: repos.Users, Audit: recorder, BcryptCost: 4})
	e.audits = NewAuditService(repos.AuditLogs, func() time.Time { return time.Now() })

	e.admin = e.addUser("Ada Admin", "ada@desk.test", domain.RoleAdmin)
	e.employee = e.addUser("Emil Employee", "emil@desk.test", domain.RoleEmployee)
	e.customer = e.addUser("Hans Kunde", "hans@acme.test", domain.RoleCustomer)
	e.stranger = e.addUser("Marge Kunde", "marge@globex.test", domain.RoleCustomer)

	e.acme = domain.Company{Name: "Acme", Email: "info@acme.test"}
	require.NoError(t, repos.Companies.Create(e.ctx, &e.acme))
	e.hans = domain.Contact{Name: "Hans Kunde", Email: "hans@acme.test", CompanyID: e.acme.ID}
	require.NoError(t, repos.Contacts.Create(e.ctx, &e.hans))
	e.unowned = domain.Contact{Name: "Ina Acme", Email: "ina@acme.test", CompanyID: e.acme.ID}
	require.NoError(t, repos.Contacts.Create(e.ctx, &e.unowned))

	e.globex = domain.Company{Name: "Globex", Email: "info@globex.test"}
	require.NoError(t, repos.Companies.Create(e.ctx, &e.globex))
	e.marge = domain.Contact{Name: "Marge Kunde", Email: "marge@globex.test", CompanyID: e.globex.ID}
	require.NoError(t, repos.Contacts.Create(e.ctx, &e.marge))
	return e
}

func (e *env) addUser(name, email string, role domain.Role) *domain.Principal {
	e.t.Helper()
	hash, err := auth.HashPassword(testPassword, 4)
	require.NoError(e.t, err)
	user := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	require.NoError(e.t, e.repos.Users.Create(e.ctx, user))
	return user.Principal()
}

// openTicket files a ticket for the hans contact as the employee.
func (e *env) openTicket(title string) *domain.Ticket {
	e.t.Helper()
	ticket, err := e.tickets.Create(e.ctx, e.employee, TicketCreateInput{
		Title:       title,
		Description: "details for " + title,
		CompanyID:   e.acme.ID,
		ContactID:   e.hans.ID,
	})
	require.NoError(e.t, err)
	return ticket
}

func (e *env) auditActions() []string {
	e.t.Helper()
	logs, err := e.repos.AuditLogs.List(e.ctx, repository.AuditLogFilter{})
	require.NoError(e.t, err)
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Action
	}
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.CodeOf(err), "error: %v", err)
}

func ptr[T any](v T) *T {
	return &v
}
