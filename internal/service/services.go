package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Services is the full set of application services over one repository set.
type Services struct {
	Auth          *AuthService
	Tickets       *TicketService
	Comments      *CommentService
	TimeEntries   *TimeEntryService
	Companies     *CompanyService
	Users         *UserService
	Audit         *AuditService
	Notifications *NotificationService
}

// Options carries the cross-cutting collaborators shared by all services.
type Options struct {
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewServices wires every service against repos.
func NewServices(cfg config.Config, repos repository.Set, opts Options) *Services {
	logger := nopLogger(opts.Logger)
	recorder := audit.NewRecorder(repos.AuditLogs, logger)
	pol := policy.New(repos.Tickets, repos.Contacts)

	return &Services{
		Auth: NewAuthService(cfg, AuthDependencies{
			UserRepo: repos.Users,
			Audit:    recorder,
			Metrics:  opts.Metrics,
			Logger:   logger,
			Clock:    opts.Clock,
		}),
		Tickets: NewTicketService(TicketDependencies{
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
			Dispatcher:    opts.Dispatcher,
			Logger:        logger,
		}),
		Comments: NewCommentService(CommentDependencies{
			CommentRepo: repos.Comments,
			HistoryRepo: repos.History,
			Transactor:  repos.Transactor,
			Policy:      pol,
			Audit:       recorder,
			Dispatcher:  opts.Dispatcher,
			Logger:      logger,
		}),
		TimeEntries: NewTimeEntryService(TimeEntryDependencies{
			TimeEntryRepo: repos.TimeEntries,
			TicketRepo:    repos.Tickets,
			HistoryRepo:   repos.History,
			Transactor:    repos.Transactor,
			Policy:        pol,
			Audit:         recorder,
			Logger:        logger,
		}),
		Companies: NewCompanyService(CompanyDependencies{
			CompanyRepo: repos.Companies,
			ContactRepo: repos.Contacts,
			TicketRepo:  repos.Tickets,
			Transactor:  repos.Transactor,
			Policy:      pol,
			Audit:       recorder,
			Logger:      logger,
		}),
		Users: NewUserService(UserDependencies{
			UserRepo:   repos.Users,
			Audit:      recorder,
			Logger:     logger,
			BcryptCost: cfg.Auth.BcryptCost,
		}),
		Audit: NewAuditService(repos.AuditLogs, opts.Clock),
		Notifications: NewNotificationService(NotificationDependencies{
			Dispatcher:  opts.Dispatcher,
			Logger:      logger,
			Config:      cfg.Notification,
			TicketRepo:  repos.Tickets,
			ContactRepo: repos.Contacts,
			UserRepo:    repos.Users,
		}),
	}
}
