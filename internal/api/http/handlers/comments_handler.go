package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

// CommentsHandler manages the comment thread of a ticket.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// List GET /api/tickets/:id/comments.
func (h *CommentsHandler) List(c *fiber.Ctx) error {
	comments, err := h.service.List(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewCommentList(comments))
}

// Create POST /api/tickets/:id/comments.
func (h *CommentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.Create(c.UserContext(), auth.Principal(c), service.CommentCreateInput{
		TicketID:   c.Params("id"),
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return created(c, dto.NewCommentResponse(comment))
}

// Get GET /api/comments/:id.
func (h *CommentsHandler) Get(c *fiber.Ctx) error {
	comment, err := h.service.Get(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewCommentResponse(comment))
}

// Update PATCH /api/comments/:id.
func (h *CommentsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.Update(c.UserContext(), auth.Principal(c), c.Params("id"), service.CommentUpdateInput{
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewCommentResponse(comment))
}

// Delete DELETE /api/comments/:id.
func (h *CommentsHandler) Delete(c *fiber.Ctx) error {
	comment, err := h.service.Delete(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewCommentResponse(comment))
}
