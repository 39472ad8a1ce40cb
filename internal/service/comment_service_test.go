package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCustomerCommentIsNeverInternal(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("thread")

	comment, err := e.comments.Create(e.ctx, e.customer, CommentCreateInput{
		TicketID: ticket.ID, Content: "  any news? ", IsInternal: true,
	})
	require.NoError(t, err)
	assert.False(t, comment.IsInternal)
	assert.Equal(t, "any news?", comment.Content)

	history, err := e.tickets.History(e.ctx, e.admin, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityComment, history[0].Type)
	assert.Equal(t, "Comment added by Hans Kunde", history[0].Message)

	last := e.dispatcher.events[len(e.dispatcher.events)-1]
	assert.Equal(t, events.EventCommentAdded, last.Type)
	payload, ok := last.Payload.(events.CommentAddedPayload)
	require.True(t, ok)
	assert.Equal(t, comment.ID, payload.CommentID)
}

func TestInternalCommentVisibility(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("internal")
	internal, err := e.comments.Create(e.ctx, e.employee, CommentCreateInput{
		TicketID: ticket.ID, Content: "customer is difficult", IsInternal: true,
	})
	require.NoError(t, err)
	assert.True(t, internal.IsInternal)

	history, err := e.tickets.History(e.ctx, e.admin, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Internal comment added by Emil Employee", history[0].Message)

	list, err := e.comments.List(e.ctx, e.customer, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = e.comments.Get(e.ctx, e.customer, internal.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	got, err := e.comments.Get(e.ctx, e.admin, internal.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.ID, got.ID)
}

func TestCommentOnHiddenTicket(t *testing.T) {
	e := newEnv(t)
	foreign, err := e.tickets.Create(e.ctx, e.employee, TicketCreateInput{
		Title: "globex", Description: "d", CompanyID: e.globex.ID, ContactID: e.marge.ID,
	})
	require.NoError(t, err)

	_, err = e.comments.Create(e.ctx, e.customer, CommentCreateInput{TicketID: foreign.ID, Content: "hi"})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = e.comments.List(e.ctx, e.customer, foreign.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = e.comments.Create(e.ctx, e.employee, CommentCreateInput{TicketID: foreign.ID, Content: "   "})
	requireCode(t, err, apperrors.CodeBadUserInput)
}

func TestCommentOwnership(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("ownership")
	comment, err := e.comments.Create(e.ctx, e.employee, CommentCreateInput{TicketID: ticket.ID, Content: "first"})
	require.NoError(t, err)

	other := e.addUser("Olga Other", "olga@desk.test", domain.RoleEmployee)
	_, err = e.comments.Update(e.ctx, other, comment.ID, CommentUpdateInput{Content: ptr("hijack")})
	requireCode(t, err, apperrors.CodeForbidden)

	updated, err := e.comments.Update(e.ctx, e.employee, comment.ID, CommentUpdateInput{Content: ptr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	_, err = e.comments.Update(e.ctx, e.employee, comment.ID, CommentUpdateInput{Content: ptr(" ")})
	requireCode(t, err, apperrors.CodeBadUserInput)

	_, err = e.comments.Delete(e.ctx, e.admin, comment.ID)
	require.NoError(t, err)
	assert.Contains(t, e.auditActions(), audit.ActionCommentDelete)

	_, err = e.comments.Get(e.ctx, e.admin, comment.ID)
	requireCode(t, err, apperrors.CodeForbidden)
}
