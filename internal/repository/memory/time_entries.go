package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type timeEntryRepo struct{ s *Store }

func (r *timeEntryRepo) Create(_ context.Context, entry *domain.TimeEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = newID()
	entry.CreatedAt = r.s.tick()
	entry.UpdatedAt = entry.CreatedAt
	r.s.entries[entry.ID] = *entry
	return nil
}

func (r *timeEntryRepo) Update(_ context.Context, entry *domain.TimeEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.entries[entry.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Description = entry.Description
	stored.StartTime = entry.StartTime
	stored.EndTime = entry.EndTime
	stored.Duration = entry.Duration
	stored.Billable = entry.Billable
	stored.UpdatedAt = r.s.tick()
	entry.UpdatedAt = stored.UpdatedAt
	r.s.entries[entry.ID] = stored
	return nil
}

func (r *timeEntryRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.entries[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.entries, id)
	return nil
}

func (r *timeEntryRepo) GetByID(_ context.Context, id string) (*domain.TimeEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entry, ok := r.s.entries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &entry, nil
}

func (r *timeEntryRepo) List(_ context.Context, f repository.TimeEntryFilter) ([]domain.TimeEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.TimeEntry{}
	for _, e := range r.s.entries {
		if f.TicketID != nil && e.TicketID != *f.TicketID {
			continue
		}
		if f.UserID != nil && e.UserID != *f.UserID {
			continue
		}
		if f.From != nil && e.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && e.StartTime.After(*f.To) {
			continue
		}
		if f.Billable != nil && e.Billable != *f.Billable {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if f.NewestFirst {
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.After(b.StartTime)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if f.Limit <= 0 {
		return result, nil
	}
	offset := max(f.Offset, 0)
	if offset >= len(result) {
		return []domain.TimeEntry{}, nil
	}
	return result[offset:min(offset+f.Limit, len(result))], nil
}
