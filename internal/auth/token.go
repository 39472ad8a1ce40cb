package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const refreshTokenType = "refresh"

// ErrInvalidToken covers every reason a token can be rejected: bad
// signature, malformed payload, expiry or wrong token type.
var ErrInvalidToken = errors.New("invalid token")

// Claims describes the JWT payload shared by access and refresh tokens.
// TokenType is empty for access tokens and "refresh" for refresh tokens.
type Claims struct {
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies access and refresh tokens. The two kinds
// are signed with different secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 8 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// IssuePair signs a fresh access and refresh token for subjectID.
func (tm *TokenManager) IssuePair(subjectID string) (domain.TokenPair, error) {
	access, accessExp, err := tm.sign(subjectID, "", tm.accessSecret, tm.accessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := tm.sign(subjectID, refreshTokenType, tm.refreshSecret, tm.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (tm *TokenManager) sign(subjectID, tokenType string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyAccessToken validates an access token and returns its subject.
// It never touches storage.
func (tm *TokenManager) VerifyAccessToken(tokenStr string) (string, error) {
	claims, err := tm.parse(tokenStr, tm.accessSecret)
	if err != nil {
		return "", err
	}
	if claims.TokenType != "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// VerifyRefreshToken validates a refresh token and returns its subject.
func (tm *TokenManager) VerifyRefreshToken(tokenStr string) (string, error) {
	claims, err := tm.parse(tokenStr, tm.refreshSecret)
	if err != nil {
		return "", err
	}
	if claims.TokenType != refreshTokenType {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (tm *TokenManager) parse(tokenStr string, secret []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
