package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// DefaultAuditLimit applies when a listing does not set a limit.
const DefaultAuditLimit = 50

var auditTimeRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// AuditListInput filters the audit log. An unknown TimeRange means all
// time.
type AuditListInput struct {
	Action    string
	Resource  string
	UserEmail string
	IPAddress string
	TimeRange string
	Limit     int
	Offset    int
}

// AuditService exposes the audit trail to admins.
type AuditService struct {
	logs repository.AuditLogRepository
	now  func() time.Time
}

// NewAuditService constructs the service.
func NewAuditService(logs repository.AuditLogRepository, now func() time.Time) *AuditService {
	if now == nil {
		now = time.Now
	}
	return &AuditService{logs: logs, now: now}
}

// List returns matching entries newest first.
func (s *AuditService) List(ctx context.Context, principal *domain.Principal, input AuditListInput) ([]domain.AuditLog, error) {
	if err := policy.Authorize(principal, policy.AuditView, policy.Resource{}); err != nil {
		return nil, err
	}
	filter := repository.AuditLogFilter{
		Action:    input.Action,
		Resource:  input.Resource,
		UserEmail: input.UserEmail,
		IPAddress: input.IPAddress,
		Limit:     clampLimit(input.Limit, DefaultAuditLimit, repository.MaxAuditLimit),
		Offset:    max(input.Offset, 0),
	}
	if window, ok := auditTimeRanges[input.TimeRange]; ok {
		since := s.now().Add(-window)
		filter.Since = &since
	}
	logs, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return nonNil(logs), nil
}
