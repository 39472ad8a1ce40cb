package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type commentRepo struct{ s *Store }

func (r *commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comment.ID = newID()
	comment.CreatedAt = r.s.tick()
	comment.UpdatedAt = comment.CreatedAt
	r.s.comments[comment.ID] = *comment
	return nil
}

func (r *commentRepo) Update(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.comments[comment.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Content = comment.Content
	stored.IsInternal = comment.IsInternal
	stored.UpdatedAt = r.s.tick()
	comment.UpdatedAt = stored.UpdatedAt
	r.s.comments[comment.ID] = stored
	return nil
}

func (r *commentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.comments, id)
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	comment, ok := r.s.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &comment, nil
}

func (r *commentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := []domain.Comment{}
	for _, comment := range r.s.comments {
		if comment.TicketID != ticketID || (comment.IsInternal && !includeInternal) {
			continue
		}
		result = append(result, comment)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}
