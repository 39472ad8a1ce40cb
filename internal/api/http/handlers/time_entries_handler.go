package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

// TimeEntriesHandler manages logged work.
type TimeEntriesHandler struct {
	service *service.TimeEntryService
}

// NewTimeEntriesHandler constructs handler.
func NewTimeEntriesHandler(entryService *service.TimeEntryService) *TimeEntriesHandler {
	return &TimeEntriesHandler{service: entryService}
}

// List GET /api/time-entries.
func (h *TimeEntriesHandler) List(c *fiber.Ctx) error {
	from, err := parseTime(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTime(c, "to")
	if err != nil {
		return err
	}
	billable, err := parseBool(c, "billable")
	if err != nil {
		return err
	}
	entries, err := h.service.List(c.UserContext(), auth.Principal(c), service.TimeEntryListInput{
		TicketID: queryString(c, "ticket_id"),
		UserID:   queryString(c, "user_id"),
		From:     from,
		To:       to,
		Billable: billable,
		Limit:    parseInt(c.Query("limit"), 0),
		Offset:   parseInt(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewTimeEntryList(entries))
}

// Mine GET /api/time-entries/mine.
func (h *TimeEntriesHandler) Mine(c *fiber.Ctx) error {
	from, err := parseTime(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTime(c, "to")
	if err != nil {
		return err
	}
	entries, err := h.service.Mine(c.UserContext(), auth.Principal(c), from, to)
	if err != nil {
		return err
	}
	return data(c, dto.NewTimeEntryList(entries))
}

// Get GET /api/time-entries/:id.
func (h *TimeEntriesHandler) Get(c *fiber.Ctx) error {
	entry, err := h.service.Get(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewTimeEntryResponse(entry))
}

// Create POST /api/time-entries.
func (h *TimeEntriesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTimeEntryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entry, err := h.service.Create(c.UserContext(), auth.Principal(c), service.TimeEntryCreateInput{
		TicketID:    req.TicketID,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Billable:    req.Billable,
	})
	if err != nil {
		return err
	}
	return created(c, dto.NewTimeEntryResponse(entry))
}

// Update PATCH /api/time-entries/:id.
func (h *TimeEntriesHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTimeEntryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entry, err := h.service.Update(c.UserContext(), auth.Principal(c), c.Params("id"), service.TimeEntryUpdateInput{
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Billable:    req.Billable,
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewTimeEntryResponse(entry))
}

// Delete DELETE /api/time-entries/:id.
func (h *TimeEntriesHandler) Delete(c *fiber.Ctx) error {
	entry, err := h.service.Delete(c.UserContext(), auth.Principal(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, dto.NewTimeEntryResponse(entry))
}
