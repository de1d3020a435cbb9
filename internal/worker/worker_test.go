package worker

import (
	"context"
	"errors"
	"testing"

	"procurement-service/internal/models"
	"procurement-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      []string
	subject string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to []string, subject, html string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject})
	return nil
}

func newTestWorker(t *testing.T) (*NotificationWorker, *fakeSender, *models.User) {
	t.Helper()
	repo := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, &models.User{Username: "m1", Email: "m1@example.com", Role: models.RoleProcurementManager}))
	require.NoError(t, repo.CreateUser(ctx, &models.User{Username: "m2", Email: "m2@example.com", Role: models.RoleProcurementManager}))
	requester := &models.User{Username: "c1", Email: "c1@example.com", Role: models.RoleCustodian}
	require.NoError(t, repo.CreateUser(ctx, requester))

	sender := &fakeSender{}
	return NewNotificationWorker(nil, repo, sender), sender, requester
}

func TestRequestCreatedNotifiesManagers(t *testing.T) {
	w, sender, requester := newTestWorker(t)

	err := w.HandleRequestCreated(context.Background(), &models.RequestCreatedEvent{RequestID: 3, RequesterID: requester.ID})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"m1@example.com", "m2@example.com"}, sender.sent[0].to)
	assert.Equal(t, "New purchase request #3", sender.sent[0].subject)
}

func TestStatusChangeNotifiesRequester(t *testing.T) {
	w, sender, requester := newTestWorker(t)

	err := w.HandleRequestStatusChanged(context.Background(), &models.RequestStatusChangedEvent{
		RequestID:   3,
		RequesterID: requester.ID,
		PerformedBy: 1,
		OldStatus:   models.RequestStatusPending,
		NewStatus:   models.RequestStatusApproved,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"c1@example.com"}, sender.sent[0].to)

	// the requester's own revision does not mail them
	err = w.HandleRequestStatusChanged(context.Background(), &models.RequestStatusChangedEvent{
		RequestID:   3,
		RequesterID: requester.ID,
		PerformedBy: requester.ID,
		NewStatus:   models.RequestStatusRevised,
	})
	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestFollowUpRouting(t *testing.T) {
	w, sender, requester := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, w.HandleRequestFollowedUp(ctx, &models.RequestFollowedUpEvent{RequestID: 3, RequesterID: requester.ID, PerformedBy: requester.ID, Notes: "any news?"}))
	require.NoError(t, w.HandleRequestFollowedUp(ctx, &models.RequestFollowedUpEvent{RequestID: 3, RequesterID: requester.ID, PerformedBy: 1, Notes: "waiting on supplier"}))

	require.Len(t, sender.sent, 2)
	assert.Len(t, sender.sent[0].to, 2)
	assert.Equal(t, []string{"c1@example.com"}, sender.sent[1].to)
}

func TestUnknownRequesterIsSkipped(t *testing.T) {
	w, sender, _ := newTestWorker(t)

	err := w.HandleRequestStatusChanged(context.Background(), &models.RequestStatusChangedEvent{RequestID: 3, RequesterID: 404, PerformedBy: 1})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestSendFailureIsReturned(t *testing.T) {
	w, sender, _ := newTestWorker(t)
	sender.err = errors.New("smtp timeout")

	err := w.HandleRequestCreated(context.Background(), &models.RequestCreatedEvent{RequestID: 1})
	assert.ErrorIs(t, err, sender.err)
}
