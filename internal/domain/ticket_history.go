package domain

import "time"

// ActivityType captures what a history entry records.
type ActivityType string

const (
	ActivityCreated          ActivityType = "CREATED"
	ActivityComment          ActivityType = "COMMENT"
	ActivityStatusChange     ActivityType = "STATUS_CHANGE"
	ActivityPriorityChange   ActivityType = "PRIORITY_CHANGE"
	ActivityAssignmentChange ActivityType = "ASSIGNMENT_CHANGE"
	ActivityTimeLogged       ActivityType = "TIME_LOGGED"
)

// TicketHistory is an immutable activity entry on a ticket.
type TicketHistory struct {
	ID        string
	TicketID  string
	UserID    string
	Type      ActivityType
	Message   string
	OldValue  *string
	NewValue  *string
	CreatedAt time.Time
}
