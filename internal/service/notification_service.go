package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

const webhookTimeout = 5 * time.Second

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	tickets    repository.TicketRepository
	contacts   repository.ContactRepository
	users      repository.UserRepository
}

// NotificationDependencies bundles lookups used to address notifications.
type NotificationDependencies struct {
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Config      config.NotificationConfig
	TicketRepo  repository.TicketRepository
	ContactRepo repository.ContactRepository
	UserRepo    repository.UserRepository
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		logger:     nopLogger(deps.Logger),
		cfg:        deps.Config,
		tickets:    deps.TicketRepo,
		contacts:   deps.ContactRepo,
		users:      deps.UserRepo,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmail(event, n.contactEmail(ctx, event.TicketID))
	return n.sendWebhook(event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmail(event, n.contactEmail(ctx, event.TicketID))
	return n.sendWebhook(event)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.TicketAssignedPayload); ok && payload.AssigneeID != nil {
		n.sendEmail(event, n.userEmail(ctx, *payload.AssigneeID))
	}
	return n.sendWebhook(event)
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("CommentAdded", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if ok && payload.IsInternal {
		return nil
	}
	n.sendEmail(event, n.contactEmail(ctx, event.TicketID))
	return nil
}

func (n *NotificationService) contactEmail(ctx context.Context, ticketID string) string {
	if n.tickets == nil || n.contacts == nil {
		return ""
	}
	ticket, err := n.tickets.GetByID(ctx, ticketID)
	if err != nil {
		n.logger.Debug("notification ticket lookup", zap.String("ticket_id", ticketID), zap.Error(err))
		return ""
	}
	contact, err := n.contacts.GetByID(ctx, ticket.ContactID)
	if err != nil {
		n.logger.Debug("notification contact lookup", zap.String("contact_id", ticket.ContactID), zap.Error(err))
		return ""
	}
	return contact.Email
}

func (n *NotificationService) userEmail(ctx context.Context, userID string) string {
	if n.users == nil {
		return ""
	}
	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Email
}

// sendEmail records the outgoing mail; delivery is left to the mail relay
// that tails these log lines.
func (n *NotificationService) sendEmail(event events.Event, to string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return
	}
	n.logger.Info("email notification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

// sendWebhook posts the event as JSON to the configured endpoint.
func (n *NotificationService) sendWebhook(event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	agent := fiber.Post(n.cfg.WebhookURL).Timeout(webhookTimeout).JSON(event)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("webhook %s: %w", event.Type, err)
	}
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook %s: %w", event.Type, errors.Join(errs...))
	}
	if code >= fiber.StatusBadRequest {
		return fmt.Errorf("webhook %s: status %d", event.Type, code)
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_type", string(event.Type)),
		zap.Int("status", code))
	return nil
}
