package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func issue(t *testing.T, at time.Time) domain.TokenPair {
	t.Helper()
	tm := auth.NewTokenManager("access", "refresh", 15*time.Minute, 24*time.Hour).
		WithClock(func() time.Time { return at })
	pair, err := tm.IssuePair("user-1")
	require.NoError(t, err)
	return pair
}

type fakeRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	pair    domain.TokenPair
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context, _ string) (domain.TokenPair, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.pair, f.err
}

func TestIsExpired(t *testing.T) {
	pair := issue(t, epoch)
	s := NewSession(nil).WithClock(func() time.Time { return epoch })

	assert.False(t, s.IsExpired(pair.AccessToken, 5*time.Minute))
	assert.True(t, s.IsExpired(pair.AccessToken, 15*time.Minute), "expiring exactly at the buffer edge counts")
	assert.True(t, s.IsExpired("garbage", 0))
	assert.True(t, s.IsExpired("", 0))
}

func TestSessionBasics(t *testing.T) {
	s := NewSession(nil)
	assert.False(t, s.IsAuthenticated())

	s.SetTokens("a", "r")
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "a", s.AccessToken())
	assert.Equal(t, "r", s.RefreshToken())

	s.Clear()
	assert.False(t, s.IsAuthenticated())
	_, err := s.ValidAccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestValidAccessTokenSkipsRefreshWhileFresh(t *testing.T) {
	pair := issue(t, epoch)
	refresher := &fakeRefresher{}
	s := NewSession(refresher).WithClock(func() time.Time { return epoch.Add(time.Minute) })
	s.SetTokens(pair.AccessToken, pair.RefreshToken)

	token, err := s.ValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pair.AccessToken, token)
	assert.Zero(t, refresher.calls.Load())
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	old := issue(t, epoch)
	fresh := issue(t, epoch.Add(12*time.Minute))
	refresher := &fakeRefresher{release: make(chan struct{}), pair: fresh}
	s := NewSession(refresher).WithClock(func() time.Time { return epoch.Add(12 * time.Minute) })
	s.SetTokens(old.AccessToken, old.RefreshToken)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := s.ValidAccessToken(context.Background())
			assert.NoError(t, err)
			results[i] = token
		}(i)
	}
	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for _, token := range results {
		assert.Equal(t, fresh.AccessToken, token)
	}
	assert.Equal(t, fresh.RefreshToken, s.RefreshToken())
}

func TestFailedRefreshClearsSession(t *testing.T) {
	old := issue(t, epoch)
	refresher := &fakeRefresher{err: ErrRefreshRejected}
	s := NewSession(refresher).WithClock(func() time.Time { return epoch.Add(time.Hour) })
	s.SetTokens(old.AccessToken, old.RefreshToken)

	_, err := s.ValidAccessToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefreshRejected))
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.RefreshToken())
}

func TestValidAccessTokenHonoursContext(t *testing.T) {
	old := issue(t, epoch)
	refresher := &fakeRefresher{release: make(chan struct{}), pair: issue(t, epoch.Add(time.Hour))}
	s := NewSession(refresher).WithClock(func() time.Time { return epoch.Add(time.Hour) })
	s.SetTokens(old.AccessToken, old.RefreshToken)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ValidAccessToken(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	close(refresher.release)
}
