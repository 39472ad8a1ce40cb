package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewUserInput("invalid payload")
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

// parseTime accepts RFC3339 timestamps. An empty value yields nil.
func parseTime(c *fiber.Ctx, key string) (*time.Time, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewUserInput(key + " must be an RFC3339 timestamp")
	}
	return &t, nil
}

func parseBool(c *fiber.Ctx, key string) (*bool, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, apperrors.NewUserInput(key + " must be true or false")
	}
	return &b, nil
}

func queryString(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func data(c *fiber.Ctx, payload any) error {
	return c.JSON(fiber.Map{"data": payload})
}

func created(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": payload})
}
