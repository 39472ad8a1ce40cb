package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes surfaced to API clients.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewUnauthenticated is returned when a caller has no valid session.
func NewUnauthenticated(message string) error {
	if message == "" {
		message = "not authenticated"
	}
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	if message == "" {
		message = "access denied"
	}
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewUserInput reports a request the caller can fix.
func NewUserInput(message string) error {
	return NewDomainError(CodeBadUserInput, message, http.StatusBadRequest, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeBadUserInput, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewRateLimited is returned when a client exceeded its request budget.
func NewRateLimited(message string) error {
	if message == "" {
		message = "too many requests, please try again later"
	}
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return NewUserInput("malformed identifier").(*DomainError)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}
	return NewInternalError(err).(*DomainError)
}

// fromFiberError maps router level errors such as 404 and 405.
func fromFiberError(err *fiber.Error) *DomainError {
	code := CodeBadUserInput
	switch {
	case err.Code == http.StatusUnauthorized:
		code = CodeUnauthenticated
	case err.Code == http.StatusForbidden:
		code = CodeForbidden
	case err.Code == http.StatusNotFound:
		code = CodeNotFound
	case err.Code == http.StatusTooManyRequests:
		code = CodeRateLimited
	case err.Code >= http.StatusInternalServerError:
		return NewInternalError(err).(*DomainError)
	}
	return NewDomainError(code, err.Message, err.Code, nil)
}

// CodeOf returns the client facing code for err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// IsNotFound reports whether err represents a missing row.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeNotFound
}
