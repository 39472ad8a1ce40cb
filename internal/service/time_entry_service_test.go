package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCalculateDuration(t *testing.T) {
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		end  time.Time
		want int
	}{
		{"exact hour", start.Add(time.Hour), 60},
		{"rounds down", start.Add(90*time.Minute + 29*time.Second), 90},
		{"rounds half up", start.Add(90*time.Minute + 30*time.Second), 91},
		{"under a minute", start.Add(20 * time.Second), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CalculateDuration(start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := CalculateDuration(start, start)
	requireCode(t, err, apperrors.CodeBadUserInput)
	_, err = CalculateDuration(start, start.Add(-time.Minute))
	requireCode(t, err, apperrors.CodeBadUserInput)
	assert.Equal(t, "end time must be after start time", err.Error())
}

func TestTimeEntryMaintainsWorkSummary(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("billing")

	first, err := e.entries.Create(e.ctx, e.employee, TimeEntryCreateInput{
		TicketID: ticket.ID, Description: "Checked logs", StartTime: e.clock, EndTime: e.clock.Add(45 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 45, first.Duration)
	assert.True(t, first.Billable)

	second, err := e.entries.Create(e.ctx, e.admin, TimeEntryCreateInput{
		TicketID: ticket.ID, Description: "Replaced disk", StartTime: e.clock.Add(time.Hour),
		EndTime: e.clock.Add(2 * time.Hour), Billable: ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, second.Billable)

	stored, err := e.repos.Tickets.GetByID(e.ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WorkSummary)
	assert.Equal(t, "Checked logs\n\nReplaced disk", *stored.WorkSummary)

	history, err := e.tickets.History(e.ctx, e.admin, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityTimeLogged, history[0].Type)
	assert.Equal(t, "60 minutes logged by Ada Admin", history[0].Message)

	_, err = e.entries.Update(e.ctx, e.employee, first.ID, TimeEntryUpdateInput{Description: ptr("Read the logs")})
	require.NoError(t, err)
	stored, err = e.repos.Tickets.GetByID(e.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read the logs\n\nReplaced disk", *stored.WorkSummary)

	_, err = e.entries.Delete(e.ctx, e.admin, first.ID)
	require.NoError(t, err)
	_, err = e.entries.Delete(e.ctx, e.admin, second.ID)
	require.NoError(t, err)
	stored, err = e.repos.Tickets.GetByID(e.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.WorkSummary)
	assert.Contains(t, e.auditActions(), audit.ActionTimeEntryDelete)
}

func TestTimeEntryUpdateRecomputesDuration(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("duration")
	entry, err := e.entries.Create(e.ctx, e.employee, TimeEntryCreateInput{
		TicketID: ticket.ID, Description: "work", StartTime: e.clock, EndTime: e.clock.Add(time.Hour),
	})
	require.NoError(t, err)

	updated, err := e.entries.Update(e.ctx, e.employee, entry.ID, TimeEntryUpdateInput{EndTime: ptr(e.clock.Add(150 * time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, 150, updated.Duration)

	_, err = e.entries.Update(e.ctx, e.employee, entry.ID, TimeEntryUpdateInput{StartTime: ptr(e.clock.Add(3 * time.Hour))})
	requireCode(t, err, apperrors.CodeBadUserInput)
}

func TestTimeEntryAccess(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("access")
	entry, err := e.entries.Create(e.ctx, e.employee, TimeEntryCreateInput{
		TicketID: ticket.ID, Description: "work", StartTime: e.clock, EndTime: e.clock.Add(time.Hour),
	})
	require.NoError(t, err)
	other := e.addUser("Olga Other", "olga@desk.test", domain.RoleEmployee)

	_, err = e.entries.Create(e.ctx, e.customer, TimeEntryCreateInput{
		TicketID: ticket.ID, Description: "sneaky", StartTime: e.clock, EndTime: e.clock.Add(time.Hour),
	})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = e.entries.List(e.ctx, e.customer, TimeEntryListInput{})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = e.entries.Get(e.ctx, other, entry.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, missingErr := e.entries.Get(e.ctx, other, "missing")
	requireCode(t, missingErr, apperrors.CodeForbidden)
	assert.Equal(t, err.Error(), missingErr.Error())

	_, err = e.entries.Delete(e.ctx, other, entry.ID)
	requireCode(t, err, apperrors.CodeForbidden)

	got, err := e.entries.Get(e.ctx, e.admin, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
}

func TestTimeEntryListScopes(t *testing.T) {
	e := newEnv(t)
	ticket := e.openTicket("list")
	other := e.addUser("Olga Other", "olga@desk.test", domain.RoleEmployee)
	for i, p := range []*domain.Principal{e.employee, other, e.employee} {
		start := e.clock.Add(time.Duration(i) * time.Hour)
		_, err := e.entries.Create(e.ctx, p, TimeEntryCreateInput{
			TicketID: ticket.ID, Description: "slot", StartTime: start, EndTime: start.Add(30 * time.Minute),
		})
		require.NoError(t, err)
	}

	own, err := e.entries.List(e.ctx, e.employee, TimeEntryListInput{UserID: &other.ID})
	require.NoError(t, err)
	require.Len(t, own, 2, "employees only ever see their own entries")
	assert.True(t, own[0].StartTime.After(own[1].StartTime), "newest start first")

	all, err := e.entries.List(e.ctx, e.admin, TimeEntryListInput{TicketID: &ticket.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := e.entries.List(e.ctx, e.admin, TimeEntryListInput{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].StartTime.Equal(e.clock), "last page holds the earliest start")

	from := e.clock.Add(90 * time.Minute)
	mine, err := e.entries.Mine(e.ctx, e.employee, &from, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
