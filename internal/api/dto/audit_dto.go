package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AuditLogResponse is one audit entry.
type AuditLogResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	UserEmail *string        `json:"user_email"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Details   map[string]any `json:"details"`
	IPAddress *string        `json:"ip_address"`
	UserAgent *string        `json:"user_agent"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewAuditLogList converts audit entries.
func NewAuditLogList(logs []domain.AuditLog) []AuditLogResponse {
	out := make([]AuditLogResponse, len(logs))
	for i, l := range logs {
		out[i] = AuditLogResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			UserEmail: l.UserEmail,
			Action:    l.Action,
			Resource:  l.Resource,
			Details:   l.Details,
			IPAddress: l.IPAddress,
			UserAgent: l.UserAgent,
			Timestamp: l.Timestamp,
		}
	}
	return out
}
