package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = newID()
	ticket.CreatedAt = r.s.tick()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Title = ticket.Title
	stored.Description = ticket.Description
	stored.Status = ticket.Status
	stored.Priority = ticket.Priority
	stored.AssignedToID = ticket.AssignedToID
	stored.EstimatedMinutes = ticket.EstimatedMinutes
	stored.CompanyID = ticket.CompanyID
	stored.ContactID = ticket.ContactID
	stored.UpdatedAt = r.s.tick()
	ticket.UpdatedAt = stored.UpdatedAt
	r.s.tickets[ticket.ID] = stored
	return nil
}

func (r *ticketRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	for cid, comment := range r.s.comments {
		if comment.TicketID == id {
			delete(r.s.comments, cid)
		}
	}
	for eid, entry := range r.s.entries {
		if entry.TicketID == id {
			delete(r.s.entries, eid)
		}
	}
	kept := r.s.history[:0]
	for _, h := range r.s.history {
		if h.TicketID != id {
			kept = append(kept, h)
		}
	}
	r.s.history = kept
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	if filter.MatchNone {
		return result, nil
	}

	r.s.mu.RLock()
	for _, t := range r.s.tickets {
		if matchesTicket(t, filter) {
			result = append(result, t)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultTicketLimit
	}
	offset := max(filter.Offset, 0)
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	end := min(offset+limit, len(result))
	return result[offset:end], nil
}

func matchesTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && containsStatus(f.ExcludeStatuses, t.Status) {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.AssignedToID != nil && (t.AssignedToID == nil || *t.AssignedToID != *f.AssignedToID) {
		return false
	}
	if f.CompanyID != nil && t.CompanyID != *f.CompanyID {
		return false
	}
	if f.ContactID != nil && t.ContactID != *f.ContactID {
		return false
	}
	if f.CreatedByID != nil && t.CreatedByID != *f.CreatedByID {
		return false
	}
	return true
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *ticketRepo) CountByCompany(_ context.Context, companyID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, t := range r.s.tickets {
		if t.CompanyID == companyID {
			count++
		}
	}
	return count, nil
}

func (r *ticketRepo) CountByContact(_ context.Context, contactID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, t := range r.s.tickets {
		if t.ContactID == contactID {
			count++
		}
	}
	return count, nil
}

func (r *ticketRepo) SetWorkSummary(_ context.Context, id string, summary *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.WorkSummary = summary
	ticket.UpdatedAt = r.s.tick()
	r.s.tickets[id] = ticket
	return nil
}
