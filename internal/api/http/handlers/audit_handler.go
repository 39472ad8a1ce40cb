package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{service: auditService}
}

// List GET /api/audit-logs.
func (h *AuditHandler) List(c *fiber.Ctx) error {
	logs, err := h.service.List(c.UserContext(), auth.Principal(c), service.AuditListInput{
		Action:    c.Query("action"),
		Resource:  c.Query("resource"),
		UserEmail: c.Query("user_email"),
		IPAddress: c.Query("ip_address"),
		TimeRange: c.Query("time_range"),
		Limit:     parseInt(c.Query("limit"), 0),
		Offset:    parseInt(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return data(c, dto.NewAuditLogList(logs))
}
