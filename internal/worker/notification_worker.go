package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

var (
	// ErrStopped is returned by Publish after Stop.
	ErrStopped = errors.New("notification worker stopped")
	// ErrQueueFull is returned when the event could not be queued.
	ErrQueueFull = errors.New("notification queue full")
)

// NotificationWorker is an events.Dispatcher that queues published events
// and delivers them to the subscribers of an inner dispatcher from a pool
// of goroutines, so slow handlers never block a request.
type NotificationWorker struct {
	inner   events.Dispatcher
	logger  *zap.Logger
	workers int

	mu      sync.RWMutex
	queue   chan events.Event
	stopped bool
	group   *errgroup.Group
}

// NewNotificationWorker builds a worker around inner.
func NewNotificationWorker(inner events.Dispatcher, logger *zap.Logger, workers, buffer int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &NotificationWorker{
		inner:   inner,
		logger:  logger,
		workers: workers,
		queue:   make(chan events.Event, buffer),
	}
}

// Subscribe registers handler on the inner dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Publish queues event for delivery. It never blocks.
func (w *NotificationWorker) Publish(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("notification dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		return ErrQueueFull
	}
}

// Start launches the delivery goroutines. Handlers receive a context that
// is detached from ctx's cancellation.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.group != nil || w.stopped {
		return
	}
	w.group = &errgroup.Group{}
	deliveryCtx := context.WithoutCancel(ctx)
	for i := 0; i < w.workers; i++ {
		w.group.Go(func() error {
			for event := range w.queue {
				if err := w.inner.Publish(deliveryCtx, event); err != nil {
					w.logger.Warn("notification delivery failed",
						zap.String("event_type", string(event.Type)),
						zap.String("ticket_id", event.TicketID),
						zap.Error(err))
				}
			}
			return nil
		})
	}
}

// Stop refuses new events and waits until queued ones are delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	group := w.group
	w.mu.Unlock()

	if group != nil {
		_ = group.Wait()
	}
}

// StartNotificationWorker registers notification handlers and starts
// delivery.
func StartNotificationWorker(ctx context.Context, w *NotificationWorker, notificationService *service.NotificationService) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	w.Start(ctx)
}
