package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const msgTimeEntryAccess = "access denied or time entry not found"

// Time entry listing page bounds.
const (
	DefaultTimeEntryLimit = 50
	MaxTimeEntryLimit     = 500
)

// CalculateDuration returns the whole minutes between start and end,
// rounded to the nearest minute. end must be after start.
func CalculateDuration(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, apperrors.NewUserInput("end time must be after start time")
	}
	return int(math.Round(end.Sub(start).Minutes())), nil
}

// TimeEntryService records work logged against tickets and keeps each
// ticket's work summary in step with its entries.
type TimeEntryService struct {
	entries repository.TimeEntryRepository
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	tx      repository.Transactor
	policy  *policy.Policy
	audit   *audit.Recorder
	logger  *zap.Logger
}

// TimeEntryDependencies bundles requirements for the time entry service.
type TimeEntryDependencies struct {
	TimeEntryRepo repository.TimeEntryRepository
	TicketRepo    repository.TicketRepository
	HistoryRepo   repository.TicketHistoryRepository
	Transactor    repository.Transactor
	Policy        *policy.Policy
	Audit         *audit.Recorder
	Logger        *zap.Logger
}

// TimeEntryListInput filters time entry listings. From and To bound the
// start time.
type TimeEntryListInput struct {
	TicketID *string
	UserID   *string
	From     *time.Time
	To       *time.Time
	Billable *bool
	Limit    int
	Offset   int
}

// TimeEntryCreateInput describes logged work. Billable defaults to true.
type TimeEntryCreateInput struct {
	TicketID    string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Billable    *bool
}

// TimeEntryUpdateInput is a partial update. Duration is recomputed when
// either boundary changes.
type TimeEntryUpdateInput struct {
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Billable    *bool
}

// NewTimeEntryService constructs the service.
func NewTimeEntryService(deps TimeEntryDependencies) *TimeEntryService {
	return &TimeEntryService{
		entries: deps.TimeEntryRepo,
		tickets: deps.TicketRepo,
		history: deps.HistoryRepo,
		tx:      deps.Transactor,
		policy:  deps.Policy,
		audit:   deps.Audit,
		logger:  nopLogger(deps.Logger),
	}
}

// List returns entries newest first. Employees only ever see their own.
func (s *TimeEntryService) List(ctx context.Context, principal *domain.Principal, input TimeEntryListInput) ([]domain.TimeEntry, error) {
	scope, err := s.viewScope(principal)
	if err != nil {
		return nil, err
	}
	filter := repository.TimeEntryFilter{
		From:        input.From,
		To:          input.To,
		Billable:    input.Billable,
		NewestFirst: true,
		Limit:       clampLimit(input.Limit, DefaultTimeEntryLimit, MaxTimeEntryLimit),
		Offset:      max(input.Offset, 0),
	}
	switch scope {
	case policy.Own:
		filter.UserID = &principal.ID
	case policy.Any:
		filter.UserID = input.UserID
	}
	if input.TicketID != nil {
		ticket, err := s.policy.RequireTicket(ctx, *input.TicketID, principal)
		if err != nil {
			return nil, err
		}
		filter.TicketID = &ticket.ID
	}

	return s.entries.List(ctx, filter)
}

// Mine returns the caller's entries in an optional start time window.
func (s *TimeEntryService) Mine(ctx context.Context, principal *domain.Principal, from, to *time.Time) ([]domain.TimeEntry, error) {
	if _, err := s.viewScope(principal); err != nil {
		return nil, err
	}
	return s.entries.List(ctx, repository.TimeEntryFilter{UserID: &principal.ID, From: from, To: to, NewestFirst: true})
}

// Get returns one entry the caller may see.
func (s *TimeEntryService) Get(ctx context.Context, principal *domain.Principal, id string) (*domain.TimeEntry, error) {
	return s.accessibleEntry(ctx, principal, id, policy.TimeEntryView)
}

// Create logs work on a visible ticket.
func (s *TimeEntryService) Create(ctx context.Context, principal *domain.Principal, input TimeEntryCreateInput) (*domain.TimeEntry, error) {
	if err := policy.Authorize(principal, policy.TimeEntryCreate, policy.Resource{}); err != nil {
		if principal != nil {
			return nil, apperrors.NewForbidden("customers cannot create time entries")
		}
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewUserInput("description is required")
	}
	ticket, err := s.policy.RequireTicket(ctx, input.TicketID, principal)
	if err != nil {
		return nil, err
	}
	duration, err := CalculateDuration(input.StartTime, input.EndTime)
	if err != nil {
		return nil, err
	}
	billable := true
	if input.Billable != nil {
		billable = *input.Billable
	}

	entry := &domain.TimeEntry{
		TicketID:    ticket.ID,
		UserID:      principal.ID,
		Description: description,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Duration:    duration,
		Billable:    billable,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.entries.Create(ctx, entry); err != nil {
			return fmt.Errorf("create time entry: %w", err)
		}
		if err := s.history.Create(ctx, &domain.TicketHistory{
			TicketID: ticket.ID,
			UserID:   principal.ID,
			Type:     domain.ActivityTimeLogged,
			Message:  fmt.Sprintf("%d minutes logged by %s", duration, principal.Name),
		}); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		_, err := s.refreshWorkSummary(ctx, ticket.ID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entry, nil
}

// Update edits an entry the caller owns, or any entry for an admin.
func (s *TimeEntryService) Update(ctx context.Context, principal *domain.Principal, id string, input TimeEntryUpdateInput) (*domain.TimeEntry, error) {
	entry, err := s.accessibleEntry(ctx, principal, id, policy.TimeEntryModify)
	if err != nil {
		return nil, err
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewUserInput("description cannot be empty")
		}
		entry.Description = description
	}
	if input.StartTime != nil || input.EndTime != nil {
		start, end := entry.StartTime, entry.EndTime
		if input.StartTime != nil {
			start = *input.StartTime
		}
		if input.EndTime != nil {
			end = *input.EndTime
		}
		duration, err := CalculateDuration(start, end)
		if err != nil {
			return nil, err
		}
		entry.StartTime, entry.EndTime, entry.Duration = start, end, duration
	}
	if input.Billable != nil {
		entry.Billable = *input.Billable
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.entries.Update(ctx, entry); err != nil {
			return fmt.Errorf("update time entry: %w", err)
		}
		_, err := s.refreshWorkSummary(ctx, entry.TicketID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entry, nil
}

// Delete removes an entry the caller owns, or any entry for an admin.
func (s *TimeEntryService) Delete(ctx context.Context, principal *domain.Principal, id string) (*domain.TimeEntry, error) {
	entry, err := s.accessibleEntry(ctx, principal, id, policy.TimeEntryModify)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.entries.Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("delete time entry: %w", err)
		}
		_, err := s.refreshWorkSummary(ctx, entry.TicketID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionTimeEntryDelete,
		Resource: audit.ResourceTimeEntry,
		Details:  map[string]any{"timeEntryId": entry.ID, "ticketId": entry.TicketID, "duration": entry.Duration},
	})
	return entry, nil
}

// refreshWorkSummary rebuilds the ticket's work summary from the non-empty
// entry descriptions in creation order, separated by blank lines.
func (s *TimeEntryService) refreshWorkSummary(ctx context.Context, ticketID string) (*string, error) {
	entries, err := s.entries.List(ctx, repository.TimeEntryFilter{TicketID: &ticketID})
	if err != nil {
		return nil, fmt.Errorf("list entries for summary: %w", err)
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if d := strings.TrimSpace(e.Description); d != "" {
			parts = append(parts, d)
		}
	}
	var summary *string
	if len(parts) > 0 {
		joined := strings.Join(parts, "\n\n")
		summary = &joined
	}
	if err := s.tickets.SetWorkSummary(ctx, ticketID, summary); err != nil {
		return nil, fmt.Errorf("store work summary: %w", err)
	}
	return summary, nil
}

func (s *TimeEntryService) viewScope(principal *domain.Principal) (policy.Scope, error) {
	if principal == nil {
		return policy.Deny, apperrors.NewUnauthenticated("")
	}
	scope := policy.ScopeFor(principal.Role, policy.TimeEntryView)
	if scope == policy.Deny {
		return scope, apperrors.NewForbidden("customers cannot view time entries")
	}
	return scope, nil
}

// accessibleEntry loads an entry and checks action against its owner and
// its ticket. Missing entries are indistinguishable from denied ones.
func (s *TimeEntryService) accessibleEntry(ctx context.Context, principal *domain.Principal, id string, action policy.Action) (*domain.TimeEntry, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	if !policy.Allowed(principal, action) {
		return nil, apperrors.NewForbidden("customers cannot access time entries")
	}
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewForbidden(msgTimeEntryAccess)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := policy.Authorize(principal, action, policy.Resource{OwnerID: entry.UserID}); err != nil {
		return nil, apperrors.NewForbidden(msgTimeEntryAccess)
	}
	if _, err := s.policy.RequireTicket(ctx, entry.TicketID, principal); err != nil {
		return nil, err
	}
	return entry, nil
}

