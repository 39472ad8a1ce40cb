package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = newID()
	user.CreatedAt = r.s.tick()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = user.Name
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.Role = user.Role
	stored.IsActive = user.IsActive
	stored.UpdatedAt = r.s.tick()
	user.UpdatedAt = stored.UpdatedAt
	r.s.users[user.ID] = stored
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, user := range r.s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.User
	for _, user := range r.s.users {
		if filter.ActiveOnly && !user.IsActive {
			continue
		}
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, user.Role) {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *userRepo) SetRefreshToken(_ context.Context, id string, token *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if token != nil {
		value := *token
		token = &value
	}
	user.RefreshToken = token
	user.UpdatedAt = r.s.tick()
	r.s.users[id] = user
	return nil
}

func (r *userRepo) RotateRefreshToken(_ context.Context, id, expected, next string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok || user.RefreshToken == nil || *user.RefreshToken != expected {
		return pgx.ErrNoRows
	}
	user.RefreshToken = &next
	user.UpdatedAt = r.s.tick()
	r.s.users[id] = user
	return nil
}

func (r *userRepo) SetLastLogin(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLogin = &at
	r.s.users[id] = user
	return nil
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
