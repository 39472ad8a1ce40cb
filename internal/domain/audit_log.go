package domain

import "time"

// AuditLog is a persisted security-relevant event.
type AuditLog struct {
	ID        string
	UserID    string
	UserEmail *string
	Action    string
	Resource  string
	Details   map[string]any
	IPAddress *string
	UserAgent *string
	Timestamp time.Time
}
