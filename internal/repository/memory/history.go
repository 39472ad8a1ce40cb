package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	history.ID = newID()
	history.CreatedAt = r.s.tick()
	r.s.history = append(r.s.history, *history)
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.TicketHistory{}
	for i := len(r.s.history) - 1; i >= 0; i-- {
		if r.s.history[i].TicketID == ticketID {
			result = append(result, r.s.history[i])
		}
	}
	return result, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = newID()
	entry.Timestamp = r.s.tick()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r *auditRepo) List(_ context.Context, f repository.AuditLogFilter) ([]domain.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.AuditLog{}
	for _, entry := range r.s.audit {
		if user, ok := r.s.users[entry.UserID]; ok {
			email := user.Email
			entry.UserEmail = &email
		}
		if f.Action != "" && entry.Action != f.Action {
			continue
		}
		if f.Resource != "" && entry.Resource != f.Resource {
			continue
		}
		if f.IPAddress != "" && (entry.IPAddress == nil || !containsFold(*entry.IPAddress, f.IPAddress)) {
			continue
		}
		if f.UserEmail != "" && (entry.UserEmail == nil || !containsFold(*entry.UserEmail, f.UserEmail)) {
			continue
		}
		if f.Since != nil && entry.Timestamp.Before(*f.Since) {
			continue
		}
		result = append(result, entry)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })

	limit := f.Limit
	if limit <= 0 || limit > repository.MaxAuditLimit {
		limit = repository.MaxAuditLimit
	}
	offset := max(f.Offset, 0)
	if offset >= len(result) {
		return []domain.AuditLog{}, nil
	}
	return result[offset:min(offset+limit, len(result))], nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
