package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew                TicketStatus = "NEW"
	TicketStatusInProgress         TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForCustomer TicketStatus = "WAITING_FOR_CUSTOMER"
	TicketStatusCompleted          TicketStatus = "COMPLETED"
	TicketStatusClosed             TicketStatus = "CLOSED"

	// TicketStatusNotClosed is a filter pseudo-status matching every ticket
	// that is neither CLOSED nor COMPLETED. It is never stored.
	TicketStatusNotClosed TicketStatus = "NOT_CLOSED"
)

// Valid reports whether s is a storable status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusWaitingForCustomer,
		TicketStatusCompleted, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// MaxEstimatedMinutes caps ticket estimates at one week.
const MaxEstimatedMinutes = 10080

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID               string
	Title            string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	CompanyID        string
	ContactID        string
	AssignedToID     *string
	CreatedByID      string
	EstimatedMinutes *int
	WorkSummary      *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
