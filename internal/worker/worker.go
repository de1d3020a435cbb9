package worker

import (
	"context"
	"fmt"
	"strings"

	"procurement-service/internal/broker"
	"procurement-service/internal/models"
	"procurement-service/internal/notify"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker emails staff about request lifecycle events
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	users        store.UserRepository
	sender       notify.Sender
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, users store.UserRepository, sender notify.Sender) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		users:        users,
		sender:       sender,
		logger:       util.ComponentLogger("notifier"),
	}

	w.eventHandler.OnRequestCreated(w.HandleRequestCreated)
	w.eventHandler.OnRequestStatusChanged(w.HandleRequestStatusChanged)
	w.eventHandler.OnRequestFollowedUp(w.HandleRequestFollowedUp)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// HandleRequestCreated tells every procurement manager about a new request
func (w *NotificationWorker) HandleRequestCreated(ctx context.Context, event *models.RequestCreatedEvent) error {
	managers, err := w.users.ListUsersByRole(ctx, models.RoleProcurementManager)
	if err != nil {
		return fmt.Errorf("failed to list managers: %w", err)
	}

	subject, body, err := notify.RequestCreatedMail(event)
	if err != nil {
		return err
	}
	return w.send(ctx, recipients(managers...), subject, body, event.RequestID)
}

// HandleRequestStatusChanged tells the requester about a decision or revision
func (w *NotificationWorker) HandleRequestStatusChanged(ctx context.Context, event *models.RequestStatusChangedEvent) error {
	if event.PerformedBy == event.RequesterID {
		return nil
	}
	requester, err := w.users.GetUserByID(ctx, event.RequesterID)
	if err != nil {
		return w.skipUnknown(err, event.RequesterID)
	}

	subject, body, err := notify.StatusChangedMail(event)
	if err != nil {
		return err
	}
	return w.send(ctx, recipients(*requester), subject, body, event.RequestID)
}

// HandleRequestFollowedUp forwards a remark to the requester, or to the
// managers when the requester wrote it
func (w *NotificationWorker) HandleRequestFollowedUp(ctx context.Context, event *models.RequestFollowedUpEvent) error {
	var to []string
	if event.PerformedBy == event.RequesterID {
		managers, err := w.users.ListUsersByRole(ctx, models.RoleProcurementManager)
		if err != nil {
			return fmt.Errorf("failed to list managers: %w", err)
		}
		to = recipients(managers...)
	} else {
		requester, err := w.users.GetUserByID(ctx, event.RequesterID)
		if err != nil {
			return w.skipUnknown(err, event.RequesterID)
		}
		to = recipients(*requester)
	}

	subject, body, err := notify.FollowUpMail(event)
	if err != nil {
		return err
	}
	return w.send(ctx, to, subject, body, event.RequestID)
}

func (w *NotificationWorker) send(ctx context.Context, to []string, subject, body string, requestID int64) error {
	if len(to) == 0 {
		util.NotificationsSentTotal.WithLabelValues("no_recipient").Inc()
		return nil
	}

	if err := w.sender.Send(ctx, to, subject, body); err != nil {
		util.NotificationsSentTotal.WithLabelValues("failed").Inc()
		w.logger.Error("Failed to send notification",
			zap.Int64("request_id", requestID),
			zap.Strings("to", to),
			zap.Error(err))
		return err
	}

	util.NotificationsSentTotal.WithLabelValues("sent").Inc()
	w.logger.Info("Notification sent", zap.Int64("request_id", requestID), zap.Int("recipients", len(to)))
	return nil
}

// skipUnknown drops events addressed to deleted users so they are committed
func (w *NotificationWorker) skipUnknown(err error, userID int64) error {
	if store.IsNotFound(err) {
		w.logger.Warn("Notification recipient not found", zap.Int64("user_id", userID))
		util.NotificationsSentTotal.WithLabelValues("no_recipient").Inc()
		return nil
	}
	return fmt.Errorf("failed to load user %d: %w", userID, err)
}

func recipients(users ...models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if email := strings.TrimSpace(u.Email); email != "" {
			out = append(out, email)
		}
	}
	return out
}
