package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	created []*models.RequestCreatedEvent
	changed []*models.RequestStatusChangedEvent
	follows []*models.RequestFollowedUpEvent
	err     error
}

func (p *recordingPublisher) PublishRequestCreated(ctx context.Context, e *models.RequestCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}

func (p *recordingPublisher) PublishRequestStatusChanged(ctx context.Context, e *models.RequestStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return p.err
}

func (p *recordingPublisher) PublishRequestFollowedUp(ctx context.Context, e *models.RequestFollowedUpEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.follows = append(p.follows, e)
	return p.err
}

type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func (g *memoryGuard) Claim(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.keys == nil {
		g.keys = map[string]bool{}
	}
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *memoryGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

var (
	custodian = Actor{ID: 4, Role: models.RoleCustodian, BranchID: 2}
	manager   = Actor{ID: 9, Role: models.RoleProcurementManager}
)

// newTestLifecycle returns a service whose clock advances one minute per call
func newTestLifecycle(t *testing.T) (*LifecycleService, *store.MemoryStore, *recordingPublisher) {
	t.Helper()
	repo := store.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewLifecycleService(repo, pub, &memoryGuard{})

	clock := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, repo, pub
}

func createJobOrder(t *testing.T, svc *LifecycleService, qty int) *models.PurchaseRequest {
	t.Helper()
	req, err := svc.Create(context.Background(), custodian, CreateRequestCommand{
		BranchID: custodian.BranchID,
		ItemRef:  "aircon unit, 2F",
		Quantity: qty,
		Type:     models.RequestTypeJobOrder,
	})
	require.NoError(t, err)
	return req
}

func TestCreateStartsPendingWithEmptyHistory(t *testing.T) {
	svc, _, pub := newTestLifecycle(t)

	req := createJobOrder(t, svc, 5)

	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, req.CreatedAt, req.UpdatedAt)
	assert.NotZero(t, req.ID)

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NotNil(t, history)
	assert.Len(t, pub.created, 1)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	base := CreateRequestCommand{BranchID: 2, ItemRef: "paper", Quantity: 1, Type: models.RequestTypePurchaseOrder}

	cases := map[string]func(*CreateRequestCommand){
		"zero quantity":     func(c *CreateRequestCommand) { c.Quantity = 0 },
		"negative quantity": func(c *CreateRequestCommand) { c.Quantity = -2 },
		"unknown type":      func(c *CreateRequestCommand) { c.Type = "service_order" },
		"blank item":        func(c *CreateRequestCommand) { c.ItemRef = "  " },
		"missing branch":    func(c *CreateRequestCommand) { c.BranchID = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := base
			mutate(&cmd)
			_, err := svc.Create(context.Background(), custodian, cmd)
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}
}

func TestTransitionAppendsExactlyOneEntry(t *testing.T) {
	svc, _, pub := newTestLifecycle(t)
	req := createJobOrder(t, svc, 2)

	updated, err := svc.Transition(context.Background(), manager, TransitionCommand{
		RequestID: req.ID,
		NewStatus: models.RequestStatusRejected,
		Notes:     "over budget",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RequestStatusPending, history[0].OldStatus)
	assert.Equal(t, models.RequestStatusRejected, history[0].NewStatus)
	assert.Equal(t, manager.ID, history[0].PerformedBy)
	assert.Equal(t, "over budget", history[0].Notes)

	require.Len(t, pub.changed, 1)
	assert.Equal(t, models.RequestStatusRejected, pub.changed[0].NewStatus)
}

func TestTransitionFromTerminalFails(t *testing.T) {
	svc, repo, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 1)

	_, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusApproved})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusRejected})
	var tErr *InvalidTransitionError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, models.RequestStatusApproved, tErr.From)
	assert.Equal(t, models.RequestStatusRejected, tErr.To)

	stored, err := repo.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, stored.Status)

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTransitionTable(t *testing.T) {
	all := []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusApproved,
		models.RequestStatusRejected,
		models.RequestStatusRevised,
	}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			if to == models.RequestStatusApproved || to == models.RequestStatusRejected {
				want := from == models.RequestStatusPending || from == models.RequestStatusRevised
				assert.Equal(t, want, got, "%s -> %s", from, to)
			}
			if from.Terminal() {
				assert.False(t, got, "%s -> %s", from, to)
			}
		}
	}
	assert.True(t, CanTransition(models.RequestStatusRevised, models.RequestStatusPending))
	assert.False(t, CanTransition(models.RequestStatusPending, models.RequestStatusPending))
}

func TestTransitionUnknownStatusIsValidationError(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 1)

	_, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: "cancelled"})
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestTransitionUnknownRequest(t *testing.T) {
	svc, repo, _ := newTestLifecycle(t)

	_, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: 999, NewStatus: models.RequestStatusApproved})
	var nErr *NotFoundError
	require.True(t, errors.As(err, &nErr))
	assert.Equal(t, int64(999), nErr.ID)

	history, err := repo.ListHistory(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFollowUpKeepsStatus(t *testing.T) {
	svc, _, pub := newTestLifecycle(t)
	req := createJobOrder(t, svc, 3)

	require.NoError(t, svc.FollowUp(context.Background(), custodian, FollowUpCommand{RequestID: req.ID, Notes: "any update?"}))
	require.NoError(t, svc.FollowUp(context.Background(), manager, FollowUpCommand{RequestID: req.ID, Notes: "quotation requested"}))

	current, err := svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, current.Status)
	assert.Equal(t, req.UpdatedAt, current.UpdatedAt)

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, e := range history {
		assert.Equal(t, models.RequestStatusPending, e.OldStatus)
		assert.Equal(t, models.RequestStatusPending, e.NewStatus)
	}
	assert.Len(t, pub.follows, 2)
}

func TestFollowUpErrors(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 3)

	var vErr *ValidationError
	assert.True(t, errors.As(svc.FollowUp(context.Background(), custodian, FollowUpCommand{RequestID: req.ID, Notes: " "}), &vErr))

	var nErr *NotFoundError
	assert.True(t, errors.As(svc.FollowUp(context.Background(), custodian, FollowUpCommand{RequestID: 42, Notes: "hello"}), &nErr))
}

func TestReviseThenApproveScenario(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 5)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	revised, err := svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: req.ID, Quantity: 3, Notes: "only three needed"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRevised, revised.Status)
	assert.Equal(t, 3, revised.Quantity)

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RequestStatusPending, history[0].OldStatus)
	assert.Equal(t, models.RequestStatusRevised, history[0].NewStatus)

	approved, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, approved.Status)
	assert.Equal(t, 3, approved.Quantity)

	history, err = svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// entries chain from pending to the current status
	prev := models.RequestStatusPending
	for _, e := range history {
		assert.Equal(t, prev, e.OldStatus)
		prev = e.NewStatus
	}
	assert.Equal(t, approved.Status, prev)
}

func TestReviseRules(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 5)

	var vErr *ValidationError
	_, err := svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: req.ID, Quantity: 0})
	assert.True(t, errors.As(err, &vErr))

	justification := "bigger room"
	_, err = svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: req.ID, Quantity: 6, Justification: &justification})
	require.NoError(t, err)
	again, err := svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: req.ID, Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, again.Quantity)
	assert.Equal(t, "bigger room", again.Justification)

	_, err = svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusRejected})
	require.NoError(t, err)

	var tErr *InvalidTransitionError
	_, err = svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: req.ID, Quantity: 2})
	assert.True(t, errors.As(err, &tErr))

	var nErr *NotFoundError
	_, err = svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: 77, Quantity: 2})
	assert.True(t, errors.As(err, &nErr))
}

func TestResubmitRevisedRequest(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 5)

	_, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusRevised, Notes: "attach quotation"})
	require.NoError(t, err)

	back, err := svc.Transition(context.Background(), custodian, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusPending})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, back.Status)
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 5)

	cmd := FollowUpCommand{RequestID: req.ID, Notes: "ping", IdempotencyKey: "abc"}
	require.NoError(t, svc.FollowUp(context.Background(), custodian, cmd))

	var dErr *DuplicateError
	assert.True(t, errors.As(svc.FollowUp(context.Background(), custodian, cmd), &dErr))

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 5)

	_, err := svc.Revise(context.Background(), custodian, ReviseCommand{RequestID: req.ID + 100, Quantity: 2, IdempotencyKey: "k1"})
	require.Error(t, err)

	_, err = svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusApproved, IdempotencyKey: "k2"})
	require.NoError(t, err)
	_, err = svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusRejected, IdempotencyKey: "k3"})
	require.Error(t, err)

	// k3 was released, so the caller sees the real error again rather than a duplicate
	_, err = svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusRejected, IdempotencyKey: "k3"})
	var tErr *InvalidTransitionError
	assert.True(t, errors.As(err, &tErr))
}

func TestGuardFailureDoesNotBlock(t *testing.T) {
	repo := store.NewMemoryStore()
	svc := NewLifecycleService(repo, nil, &memoryGuard{err: errors.New("redis down")})
	req, err := svc.Create(context.Background(), custodian, CreateRequestCommand{BranchID: 2, ItemRef: "x", Quantity: 1, Type: models.RequestTypeJobOrder})
	require.NoError(t, err)

	err = svc.FollowUp(context.Background(), custodian, FollowUpCommand{RequestID: req.ID, Notes: "n", IdempotencyKey: "k"})
	assert.NoError(t, err)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	svc, _, pub := newTestLifecycle(t)
	pub.err = errors.New("kafka unavailable")

	req := createJobOrder(t, svc, 1)
	_, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: models.RequestStatusApproved})
	assert.NoError(t, err)
}

func TestStampNeverGoesBackwards(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, future, svc.stamp(future))
}

func TestHistoryUnknownRequest(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	_, err := svc.History(context.Background(), 5)
	var nErr *NotFoundError
	assert.True(t, errors.As(err, &nErr))
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	svc, _, _ := newTestLifecycle(t)
	req := createJobOrder(t, svc, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, target := range []models.RequestStatus{models.RequestStatusApproved, models.RequestStatusRejected} {
		wg.Add(1)
		go func(target models.RequestStatus) {
			defer wg.Done()
			_, err := svc.Transition(context.Background(), manager, TransitionCommand{RequestID: req.ID, NewStatus: target})
			results <- err
		}(target)
	}
	wg.Wait()
	close(results)

	var ok, failed int
	for err := range results {
		if err == nil {
			ok++
		} else {
			failed++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)

	history, err := svc.History(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
