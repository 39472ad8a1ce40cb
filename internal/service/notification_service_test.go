package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

type notifierFixture struct {
	*env
	dispatcher events.Dispatcher
	logs       *observer.ObservedLogs
	ticketID   string
}

func newNotifierFixture(t *testing.T, cfg config.NotificationConfig) *notifierFixture {
	t.Helper()
	e := newEnv(t)
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(NotificationDependencies{
		Dispatcher:  dispatcher,
		Logger:      zap.New(core),
		Config:      cfg,
		TicketRepo:  e.repos.Tickets,
		ContactRepo: e.repos.Contacts,
		UserRepo:    e.repos.Users,
	}).RegisterHandlers()
	return &notifierFixture{env: e, dispatcher: dispatcher, logs: logs, ticketID: e.openTicket("printer on fire").ID}
}

func (f *notifierFixture) publish(eventType events.EventType, payload any) error {
	return f.dispatcher.Publish(f.ctx, events.Event{
		ID:       "evt-1",
		Type:     eventType,
		TicketID: f.ticketID,
		Actor:    actorOf(f.employee),
		Payload:  payload,
	})
}

func (f *notifierFixture) mailedTo() []string {
	var to []string
	for _, entry := range f.logs.FilterMessage("email notification").All() {
		to = append(to, entry.ContextMap()["to"].(string))
	}
	return to
}

func TestNotificationSkipsInternalComments(t *testing.T) {
	f := newNotifierFixture(t, config.NotificationConfig{EmailFrom: "desk@helpdesk.test"})

	require.NoError(t, f.publish(events.EventCommentAdded, events.CommentAddedPayload{CommentID: "c1", IsInternal: true}))
	assert.Empty(t, f.mailedTo())

	require.NoError(t, f.publish(events.EventCommentAdded, events.CommentAddedPayload{CommentID: "c2"}))
	assert.Equal(t, []string{"hans@acme.test"}, f.mailedTo())
}

func TestNotificationAddressing(t *testing.T) {
	f := newNotifierFixture(t, config.NotificationConfig{EmailFrom: "desk@helpdesk.test"})

	require.NoError(t, f.publish(events.EventTicketCreated, events.TicketCreatedPayload{Title: "printer on fire"}))
	require.NoError(t, f.publish(events.EventTicketAssigned, events.TicketAssignedPayload{AssigneeID: &f.employee.ID}))
	require.NoError(t, f.publish(events.EventTicketAssigned, events.TicketAssignedPayload{}))

	assert.Equal(t, []string{"hans@acme.test", "emil@desk.test"}, f.mailedTo())
}

func TestNotificationWithoutSenderSendsNoEmail(t *testing.T) {
	f := newNotifierFixture(t, config.NotificationConfig{})

	require.NoError(t, f.publish(events.EventTicketCreated, events.TicketCreatedPayload{}))
	assert.Empty(t, f.mailedTo())
}

func TestNotificationWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
		status   = http.StatusAccepted
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Type     string `json:"type"`
			TicketID string `json:"ticket_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body.Type+":"+body.TicketID)
		code := status
		mu.Unlock()
		w.WriteHeader(code)
	}))
	defer srv.Close()

	f := newNotifierFixture(t, config.NotificationConfig{WebhookURL: srv.URL})

	require.NoError(t, f.publish(events.EventTicketCreated, events.TicketCreatedPayload{}))
	mu.Lock()
	assert.Equal(t, []string{"ticket_created:" + f.ticketID}, received)
	status = http.StatusBadRequest
	mu.Unlock()

	err := f.publish(events.EventTicketStatusChanged, events.TicketStatusChangedPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
