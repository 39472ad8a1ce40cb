package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type companyRepo struct{ s *Store }

func (r *companyRepo) Create(_ context.Context, company *domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	company.ID = newID()
	company.CreatedAt = r.s.tick()
	company.UpdatedAt = company.CreatedAt
	r.s.companies[company.ID] = *company
	return nil
}

func (r *companyRepo) Update(_ context.Context, company *domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.companies[company.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	company.CreatedAt = stored.CreatedAt
	company.UpdatedAt = r.s.tick()
	r.s.companies[company.ID] = *company
	return nil
}

func (r *companyRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.companies, id)
	return nil
}

func (r *companyRepo) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	company, ok := r.s.companies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &company, nil
}

func (r *companyRepo) GetByEmail(_ context.Context, email string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, company := range r.s.companies {
		if company.Email == email {
			return &company, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *companyRepo) List(_ context.Context) ([]domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Company, 0, len(r.s.companies))
	for _, company := range r.s.companies {
		result = append(result, company)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *companyRepo) ClearPrimaryContact(_ context.Context, contactIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make(map[string]struct{}, len(contactIDs))
	for _, id := range contactIDs {
		ids[id] = struct{}{}
	}
	for id, company := range r.s.companies {
		if company.PrimaryContactID == nil {
			continue
		}
		if _, ok := ids[*company.PrimaryContactID]; ok {
			company.PrimaryContactID = nil
			company.UpdatedAt = r.s.tick()
			r.s.companies[id] = company
		}
	}
	return nil
}
