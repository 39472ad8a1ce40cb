package domain

import "time"

// TimeEntry records work done on a ticket. Duration is in minutes and is
// always derived from StartTime and EndTime on the server.
type TimeEntry struct {
	ID          string
	TicketID    string
	UserID      string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Duration    int
	Billable    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
