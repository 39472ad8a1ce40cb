package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ORIGINS", "https://desk.example.com, https://ops.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8*time.Hour, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL())
	assert.NotEqual(t, cfg.Auth.JWTSecret, cfg.Auth.JWTRefreshSecret)
	assert.Equal(t, []string{"https://desk.example.com", "https://ops.example.com"}, cfg.CORS.Origins)
	assert.Contains(t, cfg.AllowedOrigins(), "http://localhost:5173")
	assert.Equal(t, 10, cfg.RateLimit.AuthMax)
	assert.Equal(t, 200, cfg.RateLimit.APIMax)
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_JWT_REFRESH_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("AUTH_JWT_SECRET", "same")
	t.Setenv("AUTH_JWT_REFRESH_SECRET", "same")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("AUTH_JWT_REFRESH_SECRET", "other")
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotContains(t, cfg.AllowedOrigins(), "http://localhost:3000")
}
