package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()/]{6,20}$`)
)

const (
	minPasswordLength = 8
	minNameLength     = 2
)

func validEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

func validPhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimSpace(phone))
}

func validName(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= minNameLength
}

func requireEmail(email string) error {
	if !validEmail(email) {
		return apperrors.NewUserInput("invalid email format")
	}
	return nil
}

func requireName(name, field string) error {
	if !validName(name) {
		return apperrors.NewUserInput(field + " must be at least 2 characters long")
	}
	return nil
}

func requirePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.NewUserInput("password must be at least 8 characters long")
	}
	return nil
}

// optionalPhone validates and normalises an optional phone number.
func optionalPhone(phone *string) (*string, error) {
	if phone == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil, nil
	}
	if !validPhone(trimmed) {
		return nil, apperrors.NewUserInput("invalid phone number format")
	}
	return &trimmed, nil
}

func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
