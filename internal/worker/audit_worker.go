// Package worker runs background consumers of domain events.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/service"
)

const defaultQueueSize = 256

// AuditWorker moves audit writes off the request path. Events are queued by
// the dispatcher and recorded by a single goroutine in publish order.
type AuditWorker struct {
	audit  *service.AuditService
	logger *zap.Logger
	queue  chan events.Event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAuditWorker creates a worker with a bounded queue.
func NewAuditWorker(audit *service.AuditService, logger *zap.Logger, queueSize int) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &AuditWorker{
		audit:  audit,
		logger: logger,
		queue:  make(chan events.Event, queueSize),
	}
}

// StartAuditWorker subscribes the worker to every audited event and starts it.
func StartAuditWorker(ctx context.Context, dispatcher events.Dispatcher, w *AuditWorker) {
	if w == nil || dispatcher == nil {
		return
	}
	for _, eventType := range service.AuditedEvents {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
	w.wg.Add(1)
	go w.run(ctx)
}

// enqueue never blocks a request: a full queue drops the event with a warning.
func (w *AuditWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("audit queue full; event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
	return nil
}

func (w *AuditWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for event := range w.queue {
		// The request context may be gone by now.
		if err := w.audit.Record(context.WithoutCancel(ctx), event); err != nil {
			w.logger.Warn("audit record failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
}

// Stop drains the queue and waits for the worker to exit. Events published
// after Stop are dropped.
func (w *AuditWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
