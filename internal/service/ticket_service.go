package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// MaxTicketLimit caps a single ticket listing page.
const MaxTicketLimit = 200

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	companies  repository.CompanyRepository
	contacts   repository.ContactRepository
	users      repository.UserRepository
	comments   repository.CommentRepository
	entries    repository.TimeEntryRepository
	history    repository.TicketHistoryRepository
	tx         repository.Transactor
	policy     *policy.Policy
	audit      *audit.Recorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	CompanyRepo   repository.CompanyRepository
	ContactRepo   repository.ContactRepository
	UserRepo      repository.UserRepository
	CommentRepo   repository.CommentRepository
	TimeEntryRepo repository.TimeEntryRepository
	HistoryRepo   repository.TicketHistoryRepository
	Transactor    repository.Transactor
	Policy        *policy.Policy
	Audit         *audit.Recorder
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// TicketListInput describes listing filters. Status may be NOT_CLOSED.
type TicketListInput struct {
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	AssignedToID *string
	CompanyID    *string
	CreatedByID  *string
	Limit        int
	Offset       int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title            string
	Description      string
	CompanyID        string
	ContactID        string
	AssignedToID     *string
	Priority         domain.TicketPriority
	EstimatedMinutes *int
}

// TicketUpdateInput carries a partial update. An empty AssignedToID
// removes the assignee and an EstimatedMinutes of 0 removes the estimate.
type TicketUpdateInput struct {
	Title            *string
	Description      *string
	Status           *domain.TicketStatus
	Priority         *domain.TicketPriority
	AssignedToID     *string
	CompanyID        *string
	ContactID        *string
	EstimatedMinutes *int
}

// TicketDetail is a ticket together with the thread the caller may see.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Comments    []domain.Comment
	TimeEntries []domain.TimeEntry
	History     []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		companies:  deps.CompanyRepo,
		contacts:   deps.ContactRepo,
		users:      deps.UserRepo,
		comments:   deps.CommentRepo,
		entries:    deps.TimeEntryRepo,
		history:    deps.HistoryRepo,
		tx:         deps.Transactor,
		policy:     deps.Policy,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     nopLogger(deps.Logger),
	}
}

// List returns the tickets principal may see, newest first.
func (s *TicketService) List(ctx context.Context, principal *domain.Principal, input TicketListInput) ([]domain.Ticket, error) {
	requested := repository.TicketFilter{
		Priority:     input.Priority,
		AssignedToID: input.AssignedToID,
		CompanyID:    input.CompanyID,
		CreatedByID:  input.CreatedByID,
		Limit:        clampLimit(input.Limit, repository.DefaultTicketLimit, MaxTicketLimit),
		Offset:       max(input.Offset, 0),
	}
	if input.Status != nil {
		if *input.Status != domain.TicketStatusNotClosed && !input.Status.Valid() {
			return nil, apperrors.NewUserInput("invalid status")
		}
		requested.Statuses = []domain.TicketStatus{*input.Status}
	}

	filter, err := s.policy.ScopeTicketList(ctx, principal, requested)
	if err != nil {
		return nil, err
	}
	return s.tickets.List(ctx, filter)
}

// Get returns the ticket with comments, time entries and history. Missing
// and hidden tickets produce the same FORBIDDEN error.
func (s *TicketService) Get(ctx context.Context, principal *domain.Principal, id string) (*TicketDetail, error) {
	ticket, err := s.policy.RequireTicket(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	detail := &TicketDetail{Ticket: ticket, TimeEntries: []domain.TimeEntry{}}

	detail.Comments, err = s.comments.ListByTicket(ctx, ticket.ID, policy.Allowed(principal, policy.CommentViewInternal))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if policy.Allowed(principal, policy.TimeEntryView) {
		detail.TimeEntries, err = s.entries.List(ctx, repository.TimeEntryFilter{TicketID: &ticket.ID, NewestFirst: true})
		if err != nil {
			return nil, fmt.Errorf("list time entries: %w", err)
		}
	}
	detail.History, err = s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return detail, nil
}

// Mine lists a customer's own tickets, or the tickets a staff member
// created.
func (s *TicketService) Mine(ctx context.Context, principal *domain.Principal) ([]domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	requested := repository.TicketFilter{Limit: MaxTicketLimit}
	if principal.Role.IsStaff() {
		requested.CreatedByID = &principal.ID
	}
	filter, err := s.policy.ScopeTicketList(ctx, principal, requested)
	if err != nil {
		return nil, err
	}
	return s.tickets.List(ctx, filter)
}

// Assigned lists tickets assigned to the calling staff member.
func (s *TicketService) Assigned(ctx context.Context, principal *domain.Principal) ([]domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	if !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("customers cannot have assigned tickets")
	}
	return s.tickets.List(ctx, repository.TicketFilter{AssignedToID: &principal.ID, Limit: MaxTicketLimit})
}

// Create opens a ticket. Customers always file against their own contact
// and company and cannot pick an assignee.
func (s *TicketService) Create(ctx context.Context, principal *domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	if err := policy.Authorize(principal, policy.TicketCreate, policy.Resource{OwnerID: principal.ID}); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, apperrors.NewUserInput("title is required")
	}
	if description == "" {
		return nil, apperrors.NewUserInput("description is required")
	}

	if policy.ScopeFor(principal.Role, policy.TicketCreate) == policy.Own {
		contact, err := s.policy.CustomerContact(ctx, principal)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if contact == nil {
			return nil, apperrors.NewUserInput("no contact found for your account")
		}
		input.CompanyID = contact.CompanyID
		input.ContactID = contact.ID
		input.AssignedToID = nil
	}

	if _, err := s.companies.GetByID(ctx, input.CompanyID); err != nil {
		return nil, lookupError(err, "company not found")
	}
	contact, err := s.contacts.GetByID(ctx, input.ContactID)
	if err != nil {
		return nil, lookupError(err, "contact not found")
	}
	if contact.CompanyID != input.CompanyID {
		return nil, apperrors.NewUserInput("contact does not belong to the specified company")
	}

	var assignee *domain.User
	if input.AssignedToID != nil && *input.AssignedToID != "" {
		if assignee, err = s.requireAssignee(ctx, *input.AssignedToID); err != nil {
			return nil, err
		}
	}
	estimate, err := normalizeEstimate(input.EstimatedMinutes)
	if err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewUserInput("invalid priority")
	}

	ticket := &domain.Ticket{
		Title:            title,
		Description:      description,
		Status:           domain.TicketStatusNew,
		Priority:         priority,
		CompanyID:        input.CompanyID,
		ContactID:        input.ContactID,
		CreatedByID:      principal.ID,
		EstimatedMinutes: estimate,
	}
	if assignee != nil {
		ticket.AssignedToID = &assignee.ID
	}

	message := "Ticket created by " + principal.Name
	if estimate != nil {
		message += " with estimated time: " + formatMinutes(*estimate)
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		return s.history.Create(ctx, &domain.TicketHistory{
			TicketID: ticket.ID,
			UserID:   principal.ID,
			Type:     domain.ActivityCreated,
			Message:  message,
		})
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionTicketCreate,
		Resource: audit.ResourceTicket,
		Details:  map[string]any{"ticketId": ticket.ID, "title": ticket.Title, "priority": ticket.Priority},
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload: events.TicketCreatedPayload{
			CompanyID: ticket.CompanyID,
			ContactID: ticket.ContactID,
			Priority:  ticket.Priority,
			Title:     ticket.Title,
		},
	})
	return ticket, nil
}

// Update applies a partial staff update and records the changes as one
// history entry.
func (s *TicketService) Update(ctx context.Context, principal *domain.Principal, id string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.policy.RequireTicket(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(principal, policy.TicketUpdate, policy.Resource{}); err != nil {
		return nil, apperrors.NewForbidden("customers cannot update tickets directly")
	}

	oldStatus := ticket.Status
	oldAssignee := ticket.AssignedToID
	var changes []string

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewUserInput("title cannot be empty")
		}
		ticket.Title = title
		changes = append(changes, fmt.Sprintf("Title changed to %q", title))
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewUserInput("description cannot be empty")
		}
		ticket.Description = description
		changes = append(changes, "Description updated")
	}
	if input.Status != nil && *input.Status != ticket.Status {
		if !input.Status.Valid() {
			return nil, apperrors.NewUserInput("invalid status")
		}
		changes = append(changes, fmt.Sprintf("Status changed from %s to %s", ticket.Status, *input.Status))
		ticket.Status = *input.Status
	}
	if input.Priority != nil && *input.Priority != ticket.Priority {
		if !input.Priority.Valid() {
			return nil, apperrors.NewUserInput("invalid priority")
		}
		changes = append(changes, fmt.Sprintf("Priority changed from %s to %s", ticket.Priority, *input.Priority))
		ticket.Priority = *input.Priority
	}
	if input.EstimatedMinutes != nil {
		estimate, err := normalizeEstimate(input.EstimatedMinutes)
		if err != nil {
			return nil, err
		}
		if !equalIntPtr(estimate, ticket.EstimatedMinutes) {
			ticket.EstimatedMinutes = estimate
			if estimate != nil {
				changes = append(changes, "Estimated time set to "+formatMinutes(*estimate))
			} else {
				changes = append(changes, "Estimated time removed")
			}
		}
	}
	if input.AssignedToID != nil && !equalStringPtr(emptyToNil(*input.AssignedToID), ticket.AssignedToID) {
		if *input.AssignedToID == "" {
			ticket.AssignedToID = nil
			changes = append(changes, "Assignment removed")
		} else {
			assignee, err := s.requireAssignee(ctx, *input.AssignedToID)
			if err != nil {
				return nil, err
			}
			ticket.AssignedToID = &assignee.ID
			changes = append(changes, "Assigned to "+assignee.Name)
		}
	}
	if input.CompanyID != nil && *input.CompanyID != ticket.CompanyID {
		company, err := s.companies.GetByID(ctx, *input.CompanyID)
		if err != nil {
			return nil, lookupError(err, "company not found")
		}
		ticket.CompanyID = company.ID
		changes = append(changes, "Company changed to "+company.Name)
	}
	if input.ContactID != nil && *input.ContactID != ticket.ContactID {
		contact, err := s.contacts.GetByID(ctx, *input.ContactID)
		if err != nil {
			return nil, lookupError(err, "contact not found")
		}
		ticket.ContactID = contact.ID
		changes = append(changes, "Contact changed to "+contact.Name)
	}
	if input.CompanyID != nil || input.ContactID != nil {
		contact, err := s.contacts.GetByID(ctx, ticket.ContactID)
		if err != nil {
			return nil, lookupError(err, "contact not found")
		}
		if contact.CompanyID != ticket.CompanyID {
			return nil, apperrors.NewUserInput("contact does not belong to the specified company")
		}
	}

	if len(changes) == 0 {
		return ticket, nil
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		return s.history.Create(ctx, &domain.TicketHistory{
			TicketID: ticket.ID,
			UserID:   principal.ID,
			Type:     domain.ActivityStatusChange,
			Message:  strings.Join(changes, ", "),
		})
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionTicketUpdate,
		Resource: audit.ResourceTicket,
		Details:  map[string]any{"ticketId": ticket.ID, "changes": changes},
	})
	if ticket.Status != oldStatus {
		s.audit.Record(ctx, audit.Entry{
			UserID:   principal.ID,
			Action:   audit.ActionTicketStatus,
			Resource: audit.ResourceTicket,
			Details:  map[string]any{"ticketId": ticket.ID, "from": oldStatus, "to": ticket.Status},
		})
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    actorOf(principal),
			Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: ticket.Status},
		})
	}
	if !equalStringPtr(oldAssignee, ticket.AssignedToID) {
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    actorOf(principal),
			Payload:  events.TicketAssignedPayload{PreviousAssigneeID: oldAssignee, AssigneeID: ticket.AssignedToID},
		})
	}
	return ticket, nil
}

// Assign sets the ticket's assignee to an existing staff member.
func (s *TicketService) Assign(ctx context.Context, principal *domain.Principal, id, assigneeID string) (*domain.Ticket, error) {
	if err := policy.Authorize(principal, policy.TicketAssign, policy.Resource{}); err != nil {
		if principal != nil {
			return nil, apperrors.NewForbidden("customers cannot assign tickets")
		}
		return nil, err
	}
	ticket, err := s.policy.RequireTicket(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	assignee, err := s.requireAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}

	previous := ticket.AssignedToID
	ticket.AssignedToID = &assignee.ID
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return fmt.Errorf("assign ticket: %w", err)
		}
		return s.history.Create(ctx, &domain.TicketHistory{
			TicketID: ticket.ID,
			UserID:   principal.ID,
			Type:     domain.ActivityAssignmentChange,
			Message:  "Ticket assigned to " + assignee.Name,
			OldValue: previous,
			NewValue: &assignee.ID,
		})
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionTicketUpdate,
		Resource: audit.ResourceTicket,
		Details:  map[string]any{"ticketId": ticket.ID, "assignedToId": assignee.ID},
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload:  events.TicketAssignedPayload{PreviousAssigneeID: previous, AssigneeID: ticket.AssignedToID},
	})
	return ticket, nil
}

// Delete removes a ticket with its comments, time entries and history.
func (s *TicketService) Delete(ctx context.Context, principal *domain.Principal, id string) (*domain.Ticket, error) {
	if err := policy.Authorize(principal, policy.TicketDelete, policy.Resource{}); err != nil {
		if principal != nil {
			return nil, apperrors.NewForbidden("only admins can delete tickets")
		}
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "ticket not found")
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionTicketDelete,
		Resource: audit.ResourceTicket,
		Details:  map[string]any{"ticketId": ticket.ID, "title": ticket.Title},
	})
	return ticket, nil
}

// History lists activity on a visible ticket, newest first.
func (s *TicketService) History(ctx context.Context, principal *domain.Principal, id string) ([]domain.TicketHistory, error) {
	ticket, err := s.policy.RequireTicket(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}

// requireAssignee loads a user that may hold tickets.
func (s *TicketService) requireAssignee(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUserInput("invalid assigned user")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !user.Role.IsStaff() {
		return nil, apperrors.NewUserInput("invalid assigned user")
	}
	return user, nil
}

func normalizeEstimate(minutes *int) (*int, error) {
	if minutes == nil {
		return nil, nil
	}
	if *minutes < 0 {
		return nil, apperrors.NewUserInput("estimated minutes cannot be negative")
	}
	if *minutes > domain.MaxEstimatedMinutes {
		return nil, apperrors.NewUserInput("estimated minutes cannot exceed 7 days (10080 minutes)")
	}
	if *minutes == 0 {
		return nil, nil
	}
	v := *minutes
	return &v, nil
}

// lookupError turns a missing referenced row into a user input error.
func lookupError(err error, message string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewUserInput(message)
	}
	return apperrors.NewInternalError(err)
}

func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, ceiling)
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
