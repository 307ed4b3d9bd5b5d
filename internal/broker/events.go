package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"quote-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// QuoteEventPublisher publishes quote audit events
type QuoteEventPublisher struct {
	producer *Producer
}

// NewQuoteEventPublisher creates a new quote event publisher
func NewQuoteEventPublisher(producer *Producer) *QuoteEventPublisher {
	return &QuoteEventPublisher{producer: producer}
}

// PublishQuoteCompleted publishes a QuoteCompleted event
func (ep *QuoteEventPublisher) PublishQuoteCompleted(ctx context.Context, event *models.QuoteCompletedEvent) error {
	key := fmt.Sprintf("quote-%s", event.RequestID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming quote events to registered handlers
type EventHandler struct {
	onQuoteCompleted func(context.Context, *models.QuoteCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnQuoteCompleted registers a handler for QuoteCompleted events
func (eh *EventHandler) OnQuoteCompleted(handler func(context.Context, *models.QuoteCompletedEvent) error) {
	eh.onQuoteCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeQuoteCompleted:
		if eh.onQuoteCompleted != nil {
			var event models.QuoteCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal QuoteCompleted event: %w", err)
			}
			return eh.onQuoteCompleted(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
