package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTimeEntryRequest payload. Duration is always computed server side.
type CreateTimeEntryRequest struct {
	TicketID    string    `json:"ticket_id"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Billable    *bool     `json:"billable"`
}

// UpdateTimeEntryRequest is a partial update.
type UpdateTimeEntryRequest struct {
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Billable    *bool      `json:"billable"`
}

// TimeEntryResponse is one time entry. Duration is in minutes.
type TimeEntryResponse struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    int       `json:"duration"`
	Billable    bool      `json:"billable"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTimeEntryResponse converts a time entry.
func NewTimeEntryResponse(e *domain.TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:          e.ID,
		TicketID:    e.TicketID,
		UserID:      e.UserID,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Duration:    e.Duration,
		Billable:    e.Billable,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// NewTimeEntryList converts time entries.
func NewTimeEntryList(entries []domain.TimeEntry) []TimeEntryResponse {
	out := make([]TimeEntryResponse, len(entries))
	for i := range entries {
		out[i] = NewTimeEntryResponse(&entries[i])
	}
	return out
}
