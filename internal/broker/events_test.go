package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"procurement-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func newTestPublisher() (*EventPublisher, *captureWriter) {
	w := &captureWriter{}
	return NewEventPublisher(&Producer{writer: w, logger: zap.NewNop()}), w
}

func TestPublishKeysByRequest(t *testing.T) {
	pub, w := newTestPublisher()
	ctx := context.Background()

	require.NoError(t, pub.PublishRequestCreated(ctx, &models.RequestCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeRequestCreated},
		RequestID: 12,
		Quantity:  5,
	}))
	require.NoError(t, pub.PublishRequestStatusChanged(ctx, &models.RequestStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeRequestStatusChanged},
		RequestID: 12,
		OldStatus: models.RequestStatusPending,
		NewStatus: models.RequestStatusApproved,
	}))

	require.Len(t, w.msgs, 2)
	for _, m := range w.msgs {
		assert.Equal(t, "request-12", string(m.Key))
	}

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &decoded))
	assert.Equal(t, models.EventTypeRequestStatusChanged, decoded["event_type"])
	assert.Equal(t, "approved", decoded["new_status"])
}

func TestPublishWrapsWriterError(t *testing.T) {
	pub, w := newTestPublisher()
	w.err = errors.New("leader not available")

	err := pub.PublishRequestFollowedUp(context.Background(), &models.RequestFollowedUpEvent{RequestID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
}

func TestHandleMessageRoutesByType(t *testing.T) {
	pub, w := newTestPublisher()
	ctx := context.Background()

	var created, changed, followed int64
	h := NewEventHandler()
	h.OnRequestCreated(func(ctx context.Context, e *models.RequestCreatedEvent) error {
		created = e.RequestID
		return nil
	})
	h.OnRequestStatusChanged(func(ctx context.Context, e *models.RequestStatusChangedEvent) error {
		changed = e.RequestID
		return nil
	})
	h.OnRequestFollowedUp(func(ctx context.Context, e *models.RequestFollowedUpEvent) error {
		followed = e.RequestID
		return nil
	})

	require.NoError(t, pub.PublishRequestCreated(ctx, &models.RequestCreatedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeRequestCreated}, RequestID: 1}))
	require.NoError(t, pub.PublishRequestStatusChanged(ctx, &models.RequestStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeRequestStatusChanged}, RequestID: 2}))
	require.NoError(t, pub.PublishRequestFollowedUp(ctx, &models.RequestFollowedUpEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeRequestFollowedUp}, RequestID: 3}))

	for _, m := range w.msgs {
		require.NoError(t, h.HandleMessage(ctx, m))
	}
	assert.Equal(t, int64(1), created)
	assert.Equal(t, int64(2), changed)
	assert.Equal(t, int64(3), followed)
}

func TestHandleMessageIgnoresUnknownAndRejectsGarbage(t *testing.T) {
	h := NewEventHandler()
	ctx := context.Background()

	assert.NoError(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(`{"event_type":"ORDER_PAID"}`)}))
	assert.Error(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(`not json`)}))
}
