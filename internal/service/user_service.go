package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService manages accounts.
type UserService struct {
	users      repository.UserRepository
	audit      *audit.Recorder
	logger     *zap.Logger
	bcryptCost int
}

// UserDependencies bundles requirements for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Audit      *audit.Recorder
	Logger     *zap.Logger
	BcryptCost int
}

// UserCreateInput describes an account created by an admin.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UserUpdateInput is a partial admin update.
type UserUpdateInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
	IsActive *bool
}

// ProfileInput is a partial self-service update.
type ProfileInput struct {
	Name     *string
	Email    *string
	Password *string
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		audit:      deps.Audit,
		logger:     nopLogger(deps.Logger),
		bcryptCost: deps.BcryptCost,
	}
}

// List returns every account for an admin. Employees get the staff
// directory: active non-customers with id, name, role and status only.
func (s *UserService) List(ctx context.Context, principal *domain.Principal) ([]domain.User, error) {
	if err := policy.Authorize(principal, policy.UserList, policy.Resource{}); err != nil {
		return nil, err
	}
	if policy.ScopeFor(principal.Role, policy.UserList) == policy.Any {
		users, err := s.users.List(ctx, repository.UserFilter{})
		if err != nil {
			return nil, err
		}
		return nonNil(users), nil
	}

	users, err := s.users.List(ctx, repository.UserFilter{
		Roles:      []domain.Role{domain.RoleAdmin, domain.RoleEmployee},
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	directory := make([]domain.User, len(users))
	for i, u := range users {
		directory[i] = domain.User{ID: u.ID, Name: u.Name, Role: u.Role, IsActive: u.IsActive}
	}
	return directory, nil
}

// Get returns an account to an admin or to its owner.
func (s *UserService) Get(ctx context.Context, principal *domain.Principal, id string) (*domain.User, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	if principal.ID != id && !principal.Is(domain.RoleAdmin) {
		return nil, apperrors.NewForbidden("")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, principal *domain.Principal) (*domain.User, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	return s.Get(ctx, principal, principal.ID)
}

// Create adds an account of any role.
func (s *UserService) Create(ctx context.Context, principal *domain.Principal, input UserCreateInput) (*domain.User, error) {
	if err := policy.Authorize(principal, policy.UserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := requireEmail(input.Email); err != nil {
		return nil, err
	}
	if err := requirePassword(input.Password); err != nil {
		return nil, err
	}
	if err := requireName(input.Name, "name"); err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = domain.RoleEmployee
	}
	if !role.Valid() {
		return nil, apperrors.NewUserInput("invalid role")
	}
	email := normalizeEmail(input.Email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.writeError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionUserCreate,
		Resource: audit.ResourceUser,
		Details:  map[string]any{"userId": user.ID, "email": user.Email, "role": user.Role},
	})
	return user, nil
}

// Update changes any field of an account. Deactivation revokes the
// account's refresh token; its access tokens stop resolving immediately.
func (s *UserService) Update(ctx context.Context, principal *domain.Principal, id string, input UserUpdateInput) (*domain.User, error) {
	if err := policy.Authorize(principal, policy.UserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	wasActive := user.IsActive

	if err := s.applyProfile(ctx, user, ProfileInput{Name: input.Name, Email: input.Email, Password: input.Password}); err != nil {
		return nil, err
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperrors.NewUserInput("invalid role")
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.writeError(err)
	}
	changed := map[string]any{"userId": user.ID}
	if input.Role != nil {
		changed["role"] = user.Role
	}
	if input.IsActive != nil {
		changed["isActive"] = user.IsActive
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionUserUpdate,
		Resource: audit.ResourceUser,
		Details:  changed,
	})

	if wasActive && !user.IsActive {
		if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
			s.logger.Warn("revoke refresh token on deactivation", zap.String("user_id", user.ID), zap.Error(err))
		}
		user.RefreshToken = nil
		s.audit.Record(ctx, audit.Entry{
			UserID:   principal.ID,
			Action:   audit.ActionUserDeactivate,
			Resource: audit.ResourceUser,
			Details:  map[string]any{"userId": user.ID},
		})
	}
	return user, nil
}

// UpdateProfile lets any principal change their own name, email or
// password.
func (s *UserService) UpdateProfile(ctx context.Context, principal *domain.Principal, input ProfileInput) (*domain.User, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if err := s.applyProfile(ctx, user, input); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.writeError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionUserUpdate,
		Resource: audit.ResourceUser,
		Details:  map[string]any{"userId": user.ID, "self": true},
	})
	return user, nil
}

// Delete removes an account other than the caller's own.
func (s *UserService) Delete(ctx context.Context, principal *domain.Principal, id string) (*domain.User, error) {
	if err := policy.Authorize(principal, policy.UserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	if principal.ID == id {
		return nil, apperrors.NewUserInput("cannot delete your own account")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, apperrors.NewUserInput("user still owns tickets, comments or time entries; deactivate the account instead")
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionUserDelete,
		Resource: audit.ResourceUser,
		Details:  map[string]any{"userId": user.ID, "email": user.Email},
	})
	return user, nil
}

func (s *UserService) applyProfile(ctx context.Context, user *domain.User, input ProfileInput) error {
	if input.Name != nil {
		if err := requireName(*input.Name, "name"); err != nil {
			return err
		}
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		if err := requireEmail(*input.Email); err != nil {
			return err
		}
		email := normalizeEmail(*input.Email)
		if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
			return err
		}
		user.Email = email
	}
	if input.Password != nil {
		if err := requirePassword(*input.Password); err != nil {
			return err
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.NewInternalError(err)
	}
	if existing.ID != selfID {
		return apperrors.NewUserInput("user with this email already exists")
	}
	return nil
}

// writeError maps a lost uniqueness race to the same error the pre-check
// returns.
func (s *UserService) writeError(err error) error {
	if repository.IsUniqueViolation(err) {
		return apperrors.NewUserInput("user with this email already exists")
	}
	return apperrors.NewInternalError(err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
