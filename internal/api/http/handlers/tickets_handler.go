package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// List GET /api/tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.service.List(c.UserContext(), auth.Principal(c), parseTicketQuery(c))
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketList(tickets))
}

// Mine GET /api/tickets/mine.
func (h *TicketsHandler) Mine(c *fiber.Ctx) error {
	tickets, err := h.service.Mine(c.UserContext(), auth.Principal(c))
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketList(tickets))
}

// Assigned GET /api/tickets/assigned.
func (h *TicketsHandler) Assigned(c *fiber.Ctx) error {
	tickets, err := h.service.Assigned(c.UserContext(), auth.Principal(c))
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketList(tickets))
}

// Get GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketDetailResponse(detail.Ticket, detail.Comments, detail.TimeEntries, detail.History))
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	history, err := h.service.History(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewHistoryList(history))
}

// Create POST /api/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), auth.Principal(c), service.TicketCreateInput{
		Title:            req.Title,
		Description:      req.Description,
		CompanyID:        req.CompanyID,
		ContactID:        req.ContactID,
		AssignedToID:     req.AssignedToID,
		Priority:         req.Priority,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		return err
	}
	return created(c, dto.NewTicketResponse(ticket))
}

// Update PATCH /api/tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Update(c.UserContext(), auth.Principal(c), c.Params("id"), service.TicketUpdateInput{
		Title:            req.Title,
		Description:      req.Description,
		Status:           req.Status,
		Priority:         req.Priority,
		AssignedToID:     req.AssignedToID,
		CompanyID:        req.CompanyID,
		ContactID:        req.ContactID,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketResponse(ticket))
}

// Assign POST /api/tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Assign(c.UserContext(), auth.Principal(c), c.Params("id"), req.AssignedToID)
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketResponse(ticket))
}

// Delete DELETE /api/tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	ticket, err := h.service.Delete(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewTicketResponse(ticket))
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{
		AssignedToID: queryString(c, "assigned_to_id"),
		CompanyID:    queryString(c, "company_id"),
		CreatedByID:  queryString(c, "created_by_id"),
		Limit:        parseInt(c.Query("limit"), 0),
		Offset:       parseInt(c.Query("offset"), 0),
	}
	if status := queryString(c, "status"); status != nil {
		s := domain.TicketStatus(*status)
		input.Status = &s
	}
	if priority := queryString(c, "priority"); priority != nil {
		p := domain.TicketPriority(*priority)
		input.Priority = &p
	}
	return input
}
