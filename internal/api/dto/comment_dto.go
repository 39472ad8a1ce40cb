package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// UpdateCommentRequest is a partial update.
type UpdateCommentRequest struct {
	Content    *string `json:"content"`
	IsInternal *bool   `json:"is_internal"`
}

// CommentResponse is one comment.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewCommentResponse converts a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		TicketID:   c.TicketID,
		UserID:     c.UserID,
		Content:    c.Content,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// NewCommentList converts comments.
func NewCommentList(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, len(comments))
	for i := range comments {
		out[i] = NewCommentResponse(&comments[i])
	}
	return out
}
