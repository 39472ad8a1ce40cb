package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidRefresh     = "invalid refresh token"
)

// AuthService issues, verifies and rotates sessions. It is the only writer
// of a user's stored refresh token.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	audit      *audit.Recorder
	metrics    *observability.Metrics
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Audit    *audit.Recorder
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTRefreshSecret,
		cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL()).WithClock(now)
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   tokens,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		now:        now,
	}
}

// TokenManager exposes the signer, mainly for tests and tooling.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// IssueTokenPair signs a new pair and stores the refresh token as the
// subject's only valid one.
func (s *AuthService) IssueTokenPair(ctx context.Context, subjectID string) (domain.TokenPair, error) {
	pair, err := s.tokenMgr.IssuePair(subjectID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.users.SetRefreshToken(ctx, subjectID, &pair.RefreshToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// VerifyAccessToken validates an access token without touching storage.
func (s *AuthService) VerifyAccessToken(token string) (string, error) {
	return s.tokenMgr.VerifyAccessToken(token)
}

// ResolvePrincipal maps a bearer token to an active principal. It never
// fails; every problem yields an anonymous (nil) result.
func (s *AuthService) ResolvePrincipal(ctx context.Context, accessToken string) *domain.Principal {
	subjectID, err := s.tokenMgr.VerifyAccessToken(accessToken)
	if err != nil {
		s.logger.Debug("access token rejected", zap.Error(err))
		return nil
	}
	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Warn("principal lookup failed", zap.String("user_id", subjectID), zap.Error(err))
		}
		return nil
	}
	if !user.IsActive {
		return nil
	}
	return user.Principal()
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	if err := requireEmail(email); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, s.loginFailed(ctx, "", email, "user_not_found")
	}
	if !user.IsActive {
		return nil, s.loginFailed(ctx, user.ID, email, "account_deactivated")
	}
	ok, err := auth.ComparePassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("stored password hash unusable", zap.String("user_id", user.ID), zap.Error(err))
	}
	if !ok {
		return nil, s.loginFailed(ctx, user.ID, email, "invalid_password")
	}

	pair, err := s.IssueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	now := s.now()
	if err := s.users.SetLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	s.audit.Record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionLoginSuccess,
		Resource: audit.ResourceAuth,
		Details:  map[string]any{"email": email},
	})
	s.metrics.RecordAuth("login", "success")
	return &domain.AuthResult{TokenPair: pair, User: user}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email, reason string) error {
	s.logger.Info("login failed", zap.String("email", email), zap.String("reason", reason))
	s.audit.Record(ctx, audit.Entry{
		UserID:   userID,
		Action:   audit.ActionLoginFailed,
		Resource: audit.ResourceAuth,
		Details:  map[string]any{"email": email, "reason": reason},
	})
	s.metrics.RecordAuth("login", "failure")
	return apperrors.NewUnauthenticated(msgInvalidCredentials)
}

// Register creates a CUSTOMER account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.AuthResult, error) {
	if err := requireEmail(email); err != nil {
		return nil, err
	}
	if err := requirePassword(password); err != nil {
		return nil, err
	}
	if err := requireName(name, "name"); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewUserInput("user with this email already exists")
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	pair, err := s.IssueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionRegister,
		Resource: audit.ResourceUser,
		Details:  map[string]any{"email": email, "name": user.Name},
	})
	return &domain.AuthResult{TokenPair: pair, User: user}, nil
}

// Refresh exchanges the current refresh token for a new pair. Every
// rejection surfaces as the same UNAUTHENTICATED error.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*domain.AuthResult, error) {
	fail := func(userID, reason string, err error) error {
		s.logger.Info("refresh rejected", zap.String("user_id", userID), zap.String("reason", reason), zap.Error(err))
		s.metrics.RecordAuth("refresh", "failure")
		return apperrors.NewUnauthenticated(msgInvalidRefresh)
	}

	if strings.TrimSpace(presented) == "" {
		return nil, fail("", "missing_token", nil)
	}
	subjectID, err := s.tokenMgr.VerifyRefreshToken(presented)
	if err != nil {
		return nil, fail("", "token_invalid", err)
	}

	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error("refresh user lookup", zap.String("user_id", subjectID), zap.Error(err))
		}
		return nil, fail(subjectID, "user_not_found", err)
	}
	if !user.IsActive {
		return nil, fail(user.ID, "account_deactivated", nil)
	}
	if user.RefreshToken == nil || *user.RefreshToken != presented {
		s.audit.Record(ctx, audit.Entry{
			UserID:   user.ID,
			Action:   audit.ActionLoginFailed,
			Resource: audit.ResourceAuth,
			Details:  map[string]any{"reason": "stale_refresh_token"},
		})
		return nil, fail(user.ID, "stale_token", nil)
	}

	pair, err := s.tokenMgr.IssuePair(user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.users.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, fail(user.ID, "concurrent_rotation", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	user.RefreshToken = &pair.RefreshToken

	s.audit.Record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionTokenRefresh,
		Resource: audit.ResourceAuth,
	})
	s.metrics.RecordAuth("refresh", "success")
	return &domain.AuthResult{TokenPair: pair, User: user}, nil
}

// Revoke clears the stored refresh token. Revoking an already revoked or
// unknown subject is not an error.
func (s *AuthService) Revoke(ctx context.Context, subjectID string) error {
	if err := s.users.SetRefreshToken(ctx, subjectID, nil); err != nil && !apperrors.IsNotFound(err) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Logout revokes the caller's refresh token.
func (s *AuthService) Logout(ctx context.Context, principal *domain.Principal) error {
	if principal == nil {
		return apperrors.NewUnauthenticated("")
	}
	if err := s.Revoke(ctx, principal.ID); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionLogout,
		Resource: audit.ResourceAuth,
	})
	s.metrics.RecordAuth("logout", "success")
	return nil
}
