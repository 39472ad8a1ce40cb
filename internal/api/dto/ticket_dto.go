package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload. Customers may omit company and contact.
type CreateTicketRequest struct {
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	CompanyID        string                `json:"company_id"`
	ContactID        string                `json:"contact_id"`
	AssignedToID     *string               `json:"assigned_to_id"`
	Priority         domain.TicketPriority `json:"priority"`
	EstimatedMinutes *int                  `json:"estimated_minutes"`
}

// UpdateTicketRequest is a partial update. An empty assigned_to_id
// unassigns and an estimated_minutes of 0 removes the estimate.
type UpdateTicketRequest struct {
	Title            *string                `json:"title"`
	Description      *string                `json:"description"`
	Status           *domain.TicketStatus   `json:"status"`
	Priority         *domain.TicketPriority `json:"priority"`
	AssignedToID     *string                `json:"assigned_to_id"`
	CompanyID        *string                `json:"company_id"`
	ContactID        *string                `json:"contact_id"`
	EstimatedMinutes *int                   `json:"estimated_minutes"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssignedToID string `json:"assigned_to_id"`
}

// TicketResponse is the list representation of a ticket.
type TicketResponse struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	CompanyID        string                `json:"company_id"`
	ContactID        string                `json:"contact_id"`
	AssignedToID     *string               `json:"assigned_to_id"`
	CreatedByID      string                `json:"created_by_id"`
	EstimatedMinutes *int                  `json:"estimated_minutes"`
	WorkSummary      *string               `json:"work_summary"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// TicketDetailResponse adds the thread the caller may see.
type TicketDetailResponse struct {
	TicketResponse
	Comments    []CommentResponse   `json:"comments"`
	TimeEntries []TimeEntryResponse `json:"time_entries"`
	History     []HistoryResponse   `json:"history"`
}

// HistoryResponse is one activity entry.
type HistoryResponse struct {
	ID        string              `json:"id"`
	TicketID  string              `json:"ticket_id"`
	UserID    string              `json:"user_id"`
	Type      domain.ActivityType `json:"type"`
	Message   string              `json:"message"`
	OldValue  *string             `json:"old_value,omitempty"`
	NewValue  *string             `json:"new_value,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// NewTicketResponse converts a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           t.Status,
		Priority:         t.Priority,
		CompanyID:        t.CompanyID,
		ContactID:        t.ContactID,
		AssignedToID:     t.AssignedToID,
		CreatedByID:      t.CreatedByID,
		EstimatedMinutes: t.EstimatedMinutes,
		WorkSummary:      t.WorkSummary,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// NewTicketList converts a slice of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, len(tickets))
	for i := range tickets {
		out[i] = NewTicketResponse(&tickets[i])
	}
	return out
}

// NewTicketDetailResponse converts a ticket with its thread.
func NewTicketDetailResponse(t *domain.Ticket, comments []domain.Comment, entries []domain.TimeEntry, history []domain.TicketHistory) TicketDetailResponse {
	return TicketDetailResponse{
		TicketResponse: NewTicketResponse(t),
		Comments:       NewCommentList(comments),
		TimeEntries:    NewTimeEntryList(entries),
		History:        NewHistoryList(history),
	}
}

// NewHistoryList converts activity entries.
func NewHistoryList(history []domain.TicketHistory) []HistoryResponse {
	out := make([]HistoryResponse, len(history))
	for i, h := range history {
		out[i] = HistoryResponse{
			ID:        h.ID,
			TicketID:  h.TicketID,
			UserID:    h.UserID,
			Type:      h.Type,
			Message:   h.Message,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			CreatedAt: h.CreatedAt,
		}
	}
	return out
}
