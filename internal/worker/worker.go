package worker

import (
	"context"
	"log"
	"strings"

	"quote-service/internal/broker"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// AuditStore persists quote logs with event-ID idempotency. RecordQuoteEvent
// must write the audit row and the processed mark atomically.
type AuditStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	RecordQuoteEvent(ctx context.Context, row *models.QuoteLog, eventType string) error
}

// AuditWorker consumes QuoteCompleted events and persists them as audit
// rows. Losing an event is acceptable; double-writing one is not, so inserts
// are guarded by the processed-events table.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        AuditStore
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store AuditStore) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		store:    store,
		logger:   util.Named("audit"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnQuoteCompleted(w.handleQuoteCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting quote audit worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping quote audit worker...")
	return w.consumer.Close()
}

func (w *AuditWorker) handleQuoteCompleted(ctx context.Context, event *models.QuoteCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Debug("Skipping already-processed quote event",
			zap.String("event_id", event.EventID))
		return nil
	}

	row := &models.QuoteLog{
		EventID:      event.EventID,
		RequestID:    event.RequestID,
		Stores:       strings.Join(event.Stores, ","),
		Postcode:     event.PostcodeArea,
		RequestJSON:  event.Request,
		ResponseJSON: event.Response,
	}

	if err := w.store.RecordQuoteEvent(ctx, row, event.EventType); err != nil {
		util.QuoteLogFailuresTotal.Inc()
		return err
	}
	util.QuoteLogsPersistedTotal.Inc()

	return nil
}
