// Package client holds the caller side of a helpdesk session: the token
// pair and the refresh protocol that keeps the access token usable.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// DefaultExpiryBuffer is how long before expiry an access token is
// refreshed.
const DefaultExpiryBuffer = 5 * time.Minute

// ErrNoSession is returned when no token pair is held.
var ErrNoSession = errors.New("no active session")

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// Session holds one token pair. It is safe for concurrent use; concurrent
// callers of ValidAccessToken share a single refresh.
type Session struct {
	mu        sync.RWMutex
	access    string
	refresh   string
	refresher Refresher
	buffer    time.Duration
	now       func() time.Time
	flight    singleflight.Group
}

// NewSession returns an empty session refreshing through refresher.
func NewSession(refresher Refresher) *Session {
	return &Session{refresher: refresher, buffer: DefaultExpiryBuffer, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// WithExpiryBuffer changes how early the access token is refreshed.
func (s *Session) WithExpiryBuffer(buffer time.Duration) *Session {
	s.buffer = buffer
	return s
}

// SetTokens stores a new pair, replacing any previous one.
func (s *Session) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = accessToken
	s.refresh = refreshToken
}

// Clear forgets both tokens.
func (s *Session) Clear() {
	s.SetTokens("", "")
}

// AccessToken returns the stored access token without checking it.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the stored refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// IsAuthenticated reports whether an access token is held.
func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// IsExpired reports whether token expires within buffer. The signature is
// not checked. Unreadable tokens and tokens without exp count as expired.
func (s *Session) IsExpired(token string, buffer time.Duration) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(s.now().Add(buffer))
}

// ValidAccessToken returns an access token that is not about to expire,
// refreshing first when needed. A failed refresh clears the session.
func (s *Session) ValidAccessToken(ctx context.Context) (string, error) {
	access := s.AccessToken()
	if access == "" {
		return "", ErrNoSession
	}
	if !s.IsExpired(access, s.buffer) {
		return access, nil
	}

	ch := s.flight.DoChan("refresh", func() (any, error) {
		return s.refreshOnce(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Session) refreshOnce(ctx context.Context) (string, error) {
	if access := s.AccessToken(); access != "" && !s.IsExpired(access, s.buffer) {
		return access, nil
	}
	presented := s.RefreshToken()
	if presented == "" || s.refresher == nil {
		s.Clear()
		return "", ErrNoSession
	}

	pair, err := s.refresher.Refresh(ctx, presented)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refresh != presented {
		// replaced while the request was in flight
		if s.access == "" {
			return "", ErrNoSession
		}
		return s.access, nil
	}
	if err != nil {
		s.access, s.refresh = "", ""
		return "", err
	}
	s.access, s.refresh = pair.AccessToken, pair.RefreshToken
	return pair.AccessToken, nil
}
