package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/policy"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// CommentService manages the comment thread of a ticket.
type CommentService struct {
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	tx         repository.Transactor
	policy     *policy.Policy
	audit      *audit.Recorder
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// CommentDependencies bundles requirements for the comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	Transactor  repository.Transactor
	Policy      *policy.Policy
	Audit       *audit.Recorder
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// CommentCreateInput describes a new comment.
type CommentCreateInput struct {
	TicketID   string
	Content    string
	IsInternal bool
}

// CommentUpdateInput is a partial comment update.
type CommentUpdateInput struct {
	Content    *string
	IsInternal *bool
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		tx:         deps.Transactor,
		policy:     deps.Policy,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		logger:     nopLogger(deps.Logger),
	}
}

// List returns a ticket's comments oldest first. Customers never see
// internal comments.
func (s *CommentService) List(ctx context.Context, principal *domain.Principal, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.policy.RequireTicket(ctx, ticketID, principal)
	if err != nil {
		return nil, err
	}
	return s.comments.ListByTicket(ctx, ticket.ID, policy.Allowed(principal, policy.CommentViewInternal))
}

// Get returns one comment. Missing, hidden and internal-to-customer
// comments all produce FORBIDDEN.
func (s *CommentService) Get(ctx context.Context, principal *domain.Principal, id string) (*domain.Comment, error) {
	comment, err := s.visibleComment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Create posts a comment. A customer's comment is always public.
func (s *CommentService) Create(ctx context.Context, principal *domain.Principal, input CommentCreateInput) (*domain.Comment, error) {
	if err := policy.Authorize(principal, policy.CommentCreate, policy.Resource{}); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewUserInput("comment content is required")
	}
	ticket, err := s.policy.RequireTicket(ctx, input.TicketID, principal)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		UserID:     principal.ID,
		Content:    content,
		IsInternal: input.IsInternal && policy.Allowed(principal, policy.CommentViewInternal),
	}
	message := "Comment added by " + principal.Name
	if comment.IsInternal {
		message = "Internal comment added by " + principal.Name
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.comments.Create(ctx, comment); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return s.history.Create(ctx, &domain.TicketHistory{
			TicketID: ticket.ID,
			UserID:   principal.ID,
			Type:     domain.ActivityComment,
			Message:  message,
		})
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    principal.ID,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.Content, 120),
		},
	})
	return comment, nil
}

// Update edits a comment. Only the author or an admin may edit.
func (s *CommentService) Update(ctx context.Context, principal *domain.Principal, id string, input CommentUpdateInput) (*domain.Comment, error) {
	comment, err := s.modifiableComment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if content == "" {
			return nil, apperrors.NewUserInput("comment content cannot be empty")
		}
		comment.Content = content
	}
	if input.IsInternal != nil {
		comment.IsInternal = *input.IsInternal && policy.Allowed(principal, policy.CommentViewInternal)
	}
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return comment, nil
}

// Delete removes a comment. Only the author or an admin may delete.
func (s *CommentService) Delete(ctx context.Context, principal *domain.Principal, id string) (*domain.Comment, error) {
	comment, err := s.modifiableComment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   principal.ID,
		Action:   audit.ActionCommentDelete,
		Resource: audit.ResourceComment,
		Details:  map[string]any{"commentId": comment.ID, "ticketId": comment.TicketID},
	})
	return comment, nil
}

func (s *CommentService) visibleComment(ctx context.Context, principal *domain.Principal, id string) (*domain.Comment, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthenticated("")
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewForbidden(policy.ErrTicketAccess)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if _, err := s.policy.RequireTicket(ctx, comment.TicketID, principal); err != nil {
		return nil, err
	}
	if comment.IsInternal && !policy.Allowed(principal, policy.CommentViewInternal) {
		return nil, apperrors.NewForbidden(policy.ErrTicketAccess)
	}
	return comment, nil
}

func (s *CommentService) modifiableComment(ctx context.Context, principal *domain.Principal, id string) (*domain.Comment, error) {
	comment, err := s.visibleComment(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(principal, policy.CommentModify, policy.Resource{OwnerID: comment.UserID}); err != nil {
		return nil, apperrors.NewForbidden("you can only modify your own comments")
	}
	return comment, nil
}
