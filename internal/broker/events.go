package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-console/internal/models"
	"order-console/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes document change events to Kafka
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Notify publishes a DocumentChanged event keyed by collection, so every
// change of one collection lands on the same partition in commit order
func (ep *EventPublisher) Notify(ctx context.Context, event *models.DocumentChangedEvent) error {
	return ep.producer.PublishEvent(ctx, event.Collection, event)
}

// EventHandler routes incoming events
type EventHandler struct {
	onDocumentChanged func(context.Context, *models.DocumentChangedEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnDocumentChanged registers a handler for DocumentChanged events
func (eh *EventHandler) OnDocumentChanged(handler func(context.Context, *models.DocumentChangedEvent) error) {
	eh.onDocumentChanged = handler
}

// HandleMessage routes a Kafka message
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return eh.HandleBody(ctx, msg.Value)
}

// HandleBody routes a raw JSON event, whatever transport carried it
func (eh *EventHandler) HandleBody(ctx context.Context, body []byte) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(body, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeDocumentChanged:
		if eh.onDocumentChanged == nil {
			return nil
		}
		var event models.DocumentChangedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal DocumentChanged event: %w", err)
		}
		return eh.onDocumentChanged(ctx, &event)

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
