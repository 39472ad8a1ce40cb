package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// ErrRefreshRejected is returned when the server refuses the refresh token.
var ErrRefreshRejected = errors.New("refresh token rejected")

// HTTPRefresher calls POST /api/auth/refresh on a helpdesk server.
type HTTPRefresher struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPRefresher builds a refresher for the server at baseURL.
func NewHTTPRefresher(baseURL string) *HTTPRefresher {
	return &HTTPRefresher{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: 10 * time.Second}
}

// Refresh implements Refresher.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return domain.TokenPair{}, err
	}
	agent := fiber.Post(r.BaseURL + "/api/auth/refresh")
	agent.Timeout(r.Timeout).JSON(dto.RefreshRequest{RefreshToken: refreshToken})
	if err := agent.Parse(); err != nil {
		return domain.TokenPair{}, fmt.Errorf("build refresh request: %w", err)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return domain.TokenPair{}, fmt.Errorf("refresh request: %w", errors.Join(errs...))
	}

	var resp struct {
		Data  dto.AuthResponse `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.TokenPair{}, fmt.Errorf("decode refresh response (status %d): %w", status, err)
	}
	if status != fiber.StatusOK {
		msg := fmt.Sprintf("status %d", status)
		if resp.Error != nil {
			msg = resp.Error.Code + ": " + resp.Error.Message
		}
		return domain.TokenPair{}, fmt.Errorf("%w: %s", ErrRefreshRejected, msg)
	}
	return domain.TokenPair{
		AccessToken:      resp.Data.AccessToken,
		RefreshToken:     resp.Data.RefreshToken,
		AccessExpiresAt:  resp.Data.AccessExpiresAt,
		RefreshExpiresAt: resp.Data.RefreshExpiresAt,
	}, nil
}
