package policy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// ErrTicketAccess is returned both for a missing ticket and for one the
// caller may not see.
const ErrTicketAccess = "access denied or ticket not found"

// Resource carries the ownership facts Authorize needs.
type Resource struct {
	// OwnerID is the user id that owns the resource (author, logger).
	OwnerID string
}

// Authorize checks action against the rule table. A nil principal yields an
// UNAUTHENTICATED error and a refusal yields FORBIDDEN.
func Authorize(principal *domain.Principal, action Action, res Resource) error {
	if principal == nil {
		return apperrors.NewUnauthenticated("")
	}
	switch ScopeFor(principal.Role, action) {
	case Any, Reduced:
		return nil
	case Own:
		if res.OwnerID != "" && res.OwnerID == principal.ID {
			return nil
		}
	}
	return apperrors.NewForbidden("")
}

// Allowed reports whether principal may perform action at any scope.
func Allowed(principal *domain.Principal, action Action) bool {
	return principal != nil && ScopeFor(principal.Role, action) != Deny
}

// Policy answers questions that need storage: ticket visibility and list
// scoping. Both go through CustomerContact for the email join.
type Policy struct {
	tickets  repository.TicketRepository
	contacts repository.ContactRepository
}

// New constructs a Policy.
func New(tickets repository.TicketRepository, contacts repository.ContactRepository) *Policy {
	return &Policy{tickets: tickets, contacts: contacts}
}

// CustomerContact returns the contact whose email matches the principal's,
// or nil when there is none.
func (p *Policy) CustomerContact(ctx context.Context, principal *domain.Principal) (*domain.Contact, error) {
	if principal == nil || principal.Email == "" {
		return nil, nil
	}
	contact, err := p.contacts.GetByEmail(ctx, principal.Email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup contact by email: %w", err)
	}
	return contact, nil
}

// CanAccessTicket loads the ticket and reports whether principal may view
// it. A missing ticket yields (nil, false, nil).
func (p *Policy) CanAccessTicket(ctx context.Context, ticketID string, principal *domain.Principal) (*domain.Ticket, bool, error) {
	if principal == nil || ticketID == "" {
		return nil, false, nil
	}
	ticket, err := p.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load ticket: %w", err)
	}

	switch ScopeFor(principal.Role, TicketView) {
	case Any:
		return ticket, true, nil
	case Own:
		contact, err := p.CustomerContact(ctx, principal)
		if err != nil {
			return nil, false, err
		}
		if contact != nil && contact.ID == ticket.ContactID {
			return ticket, true, nil
		}
	}
	return ticket, false, nil
}

// RequireTicket is CanAccessTicket with missing and hidden tickets folded
// into one FORBIDDEN error.
func (p *Policy) RequireTicket(ctx context.Context, ticketID string, principal *domain.Principal) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	ticket, ok, err := p.CanAccessTicket(ctx, ticketID, principal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewForbidden(ErrTicketAccess)
	}
	return ticket, nil
}

// ScopeTicketList narrows a requested ticket filter to what principal may
// see. A customer without a matching contact gets a filter that matches
// nothing; it never falls back to the unscoped query.
func (p *Policy) ScopeTicketList(ctx context.Context, principal *domain.Principal, requested repository.TicketFilter) (repository.TicketFilter, error) {
	if principal == nil {
		return repository.TicketFilter{}, apperrors.NewUnauthenticated("")
	}
	filter := expandStatuses(requested)

	switch ScopeFor(principal.Role, TicketView) {
	case Any:
		return filter, nil
	case Own:
		contact, err := p.CustomerContact(ctx, principal)
		if err != nil {
			return repository.TicketFilter{}, err
		}
		if contact == nil {
			return repository.TicketFilter{MatchNone: true}, nil
		}
		filter.ContactID = &contact.ID
		return filter, nil
	}
	return repository.TicketFilter{MatchNone: true}, nil
}

// expandStatuses replaces the NOT_CLOSED pseudo-status with an exclusion
// of CLOSED and COMPLETED.
func expandStatuses(filter repository.TicketFilter) repository.TicketFilter {
	if !slices.Contains(filter.Statuses, domain.TicketStatusNotClosed) {
		return filter
	}
	statuses := make([]domain.TicketStatus, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		if s != domain.TicketStatusNotClosed {
			statuses = append(statuses, s)
		}
	}
	filter.Statuses = statuses
	filter.ExcludeStatuses = append(slices.Clone(filter.ExcludeStatuses),
		domain.TicketStatusClosed, domain.TicketStatusCompleted)
	return filter
}

// IsForbidden reports whether err is a FORBIDDEN refusal.
func IsForbidden(err error) bool {
	var de *apperrors.DomainError
	return errors.As(err, &de) && de.Code == apperrors.CodeForbidden
}
