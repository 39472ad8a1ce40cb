package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/api/dto"
)

func startServer(t *testing.T, handler fiber.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/api/auth/refresh", handler)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestHTTPRefresherSuccess(t *testing.T) {
	var presented string
	base := startServer(t, func(c *fiber.Ctx) error {
		var req dto.RefreshRequest
		if err := c.BodyParser(&req); err != nil {
			return err
		}
		presented = req.RefreshToken
		return c.JSON(fiber.Map{"data": dto.AuthResponse{
			AccessToken:     "new-access",
			RefreshToken:    "new-refresh",
			AccessExpiresAt: time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
		}})
	})

	pair, err := NewHTTPRefresher(base+"/").Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", presented)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
	assert.Equal(t, 15, pair.AccessExpiresAt.Minute())
}

func TestHTTPRefresherRejected(t *testing.T) {
	base := startServer(t, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": fiber.Map{
			"code": "UNAUTHENTICATED", "message": "invalid or expired token",
		}})
	})

	_, err := NewHTTPRefresher(base).Refresh(context.Background(), "stale")
	require.ErrorIs(t, err, ErrRefreshRejected)
	assert.Contains(t, err.Error(), "UNAUTHENTICATED")
}

func TestHTTPRefresherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPRefresher("http://127.0.0.1:1").Refresh(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
