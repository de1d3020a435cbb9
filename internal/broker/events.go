package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"procurement-service/internal/models"
	"procurement-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing request lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func requestKey(id int64) string {
	return fmt.Sprintf("request-%d", id)
}

// PublishRequestCreated publishes RequestCreated event
func (ep *EventPublisher) PublishRequestCreated(ctx context.Context, event *models.RequestCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.RequestID), event)
}

// PublishRequestStatusChanged publishes RequestStatusChanged event
func (ep *EventPublisher) PublishRequestStatusChanged(ctx context.Context, event *models.RequestStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.RequestID), event)
}

// PublishRequestFollowedUp publishes RequestFollowedUp event
func (ep *EventPublisher) PublishRequestFollowedUp(ctx context.Context, event *models.RequestFollowedUpEvent) error {
	return ep.producer.PublishEvent(ctx, requestKey(event.RequestID), event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onRequestCreated       func(context.Context, *models.RequestCreatedEvent) error
	onRequestStatusChanged func(context.Context, *models.RequestStatusChangedEvent) error
	onRequestFollowedUp    func(context.Context, *models.RequestFollowedUpEvent) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("events")}
}

// OnRequestCreated registers a handler for RequestCreated events
func (eh *EventHandler) OnRequestCreated(handler func(context.Context, *models.RequestCreatedEvent) error) {
	eh.onRequestCreated = handler
}

// OnRequestStatusChanged registers a handler for RequestStatusChanged events
func (eh *EventHandler) OnRequestStatusChanged(handler func(context.Context, *models.RequestStatusChangedEvent) error) {
	eh.onRequestStatusChanged = handler
}

// OnRequestFollowedUp registers a handler for RequestFollowedUp events
func (eh *EventHandler) OnRequestFollowedUp(handler func(context.Context, *models.RequestFollowedUpEvent) error) {
	eh.onRequestFollowedUp = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeRequestCreated:
		if eh.onRequestCreated != nil {
			var event models.RequestCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RequestCreated event: %w", err)
			}
			return eh.onRequestCreated(ctx, &event)
		}

	case models.EventTypeRequestStatusChanged:
		if eh.onRequestStatusChanged != nil {
			var event models.RequestStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RequestStatusChanged event: %w", err)
			}
			return eh.onRequestStatusChanged(ctx, &event)
		}

	case models.EventTypeRequestFollowedUp:
		if eh.onRequestFollowedUp != nil {
			var event models.RequestFollowedUpEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RequestFollowedUp event: %w", err)
			}
			return eh.onRequestFollowedUp(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
