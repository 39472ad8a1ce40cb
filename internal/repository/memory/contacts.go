package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type contactRepo struct{ s *Store }

func (r *contactRepo) Create(_ context.Context, contact *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	contact.ID = newID()
	contact.CreatedAt = r.s.tick()
	contact.UpdatedAt = contact.CreatedAt
	r.s.contacts[contact.ID] = *contact
	return nil
}

func (r *contactRepo) Update(_ context.Context, contact *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.contacts[contact.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	contact.CreatedAt = stored.CreatedAt
	contact.UpdatedAt = r.s.tick()
	r.s.contacts[contact.ID] = *contact
	return nil
}

func (r *contactRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.contacts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.contacts, id)
	return nil
}

func (r *contactRepo) DeleteByCompany(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, contact := range r.s.contacts {
		if contact.CompanyID == companyID {
			delete(r.s.contacts, id)
		}
	}
	return nil
}

func (r *contactRepo) GetByID(_ context.Context, id string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	contact, ok := r.s.contacts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &contact, nil
}

func (r *contactRepo) GetByEmail(_ context.Context, email string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, contact := range r.s.contacts {
		if strings.ToLower(contact.Email) == email {
			return &contact, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *contactRepo) ListByCompany(_ context.Context, companyID string) ([]domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Contact
	for _, contact := range r.s.contacts {
		if contact.CompanyID == companyID {
			result = append(result, contact)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
