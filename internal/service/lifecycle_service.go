package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher delivers lifecycle events to downstream consumers
type EventPublisher interface {
	PublishRequestCreated(ctx context.Context, event *models.RequestCreatedEvent) error
	PublishRequestStatusChanged(ctx context.Context, event *models.RequestStatusChangedEvent) error
	PublishRequestFollowedUp(ctx context.Context, event *models.RequestFollowedUpEvent) error
}

// IdempotencyGuard records client-supplied idempotency keys. Claim reports
// false when the key was already claimed.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// allowedTransitions lists the states reachable from each state through
// Transition. approved and rejected are terminal.
var allowedTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestStatusPending: {models.RequestStatusApproved, models.RequestStatusRejected, models.RequestStatusRevised},
	models.RequestStatusRevised: {models.RequestStatusPending, models.RequestStatusApproved, models.RequestStatusRejected},
}

// CanTransition reports whether a request in from may move to to
func CanTransition(from, to models.RequestStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LifecycleService owns every mutation of purchase requests and writes
// their status history
type LifecycleService struct {
	repo      store.RequestRepository
	publisher EventPublisher
	guard     IdempotencyGuard
	logger    *zap.Logger
	now       func() time.Time
}

// NewLifecycleService creates a new lifecycle service. publisher and guard may be nil.
func NewLifecycleService(repo store.RequestRepository, publisher EventPublisher, guard IdempotencyGuard) *LifecycleService {
	return &LifecycleService{
		repo:      repo,
		publisher: publisher,
		guard:     guard,
		logger:    util.ComponentLogger("lifecycle"),
		now:       time.Now,
	}
}

// CreateRequestCommand carries the fields of a new request
type CreateRequestCommand struct {
	BranchID      int64
	ItemRef       string
	Quantity      int
	Type          models.RequestType
	Justification string
}

// TransitionCommand moves a request to a new status
type TransitionCommand struct {
	RequestID      int64
	NewStatus      models.RequestStatus
	Notes          string
	IdempotencyKey string
}

// ReviseCommand changes the quantity of an open request
type ReviseCommand struct {
	RequestID      int64
	Quantity       int
	Justification  *string
	Notes          string
	IdempotencyKey string
}

// FollowUpCommand adds a remark without changing status
type FollowUpCommand struct {
	RequestID      int64
	Notes          string
	IdempotencyKey string
}

// Create files a new request in pending state
func (s *LifecycleService) Create(ctx context.Context, actor Actor, cmd CreateRequestCommand) (*models.PurchaseRequest, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Create")
	defer span.End()

	if err := validateCreate(cmd); err != nil {
		util.RequestOperationsFailedTotal.WithLabelValues("create", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return nil, err
	}

	now := s.now().UTC()
	req := &models.PurchaseRequest{
		RequesterID:   actor.ID,
		BranchID:      cmd.BranchID,
		ItemRef:       strings.TrimSpace(cmd.ItemRef),
		Type:          cmd.Type,
		Quantity:      cmd.Quantity,
		Status:        models.RequestStatusPending,
		Justification: strings.TrimSpace(cmd.Justification),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		util.RequestOperationsFailedTotal.WithLabelValues("create", "db_error").Inc()
		util.FailSpan(span, err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	util.RequestsCreatedTotal.WithLabelValues(string(req.Type)).Inc()
	s.logger.Info("Purchase request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("requester_id", req.RequesterID),
		zap.Int64("branch_id", req.BranchID))

	if s.publisher != nil {
		event := &models.RequestCreatedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeRequestCreated),
			RequestID:   req.ID,
			RequesterID: req.RequesterID,
			BranchID:    req.BranchID,
			ItemRef:     req.ItemRef,
			Type:        req.Type,
			Quantity:    req.Quantity,
		}
		if err := s.publisher.PublishRequestCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish RequestCreated event", zap.Error(err))
		}
	}

	return req, nil
}

func validateCreate(cmd CreateRequestCommand) error {
	if cmd.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if !cmd.Type.Valid() {
		return &ValidationError{Field: "request_type", Reason: fmt.Sprintf("unknown type %q", cmd.Type)}
	}
	if strings.TrimSpace(cmd.ItemRef) == "" {
		return &ValidationError{Field: "item_ref", Reason: "is required"}
	}
	if cmd.BranchID <= 0 {
		return &ValidationError{Field: "branch_id", Reason: "is required"}
	}
	return nil
}

// Transition moves a request along the lifecycle and records the change.
// The status update and the history entry commit together or not at all.
func (s *LifecycleService) Transition(ctx context.Context, actor Actor, cmd TransitionCommand) (*models.PurchaseRequest, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Transition", util.RequestAttr(cmd.RequestID))
	defer span.End()

	target, ok := models.ParseRequestStatus(string(cmd.NewStatus))
	if !ok {
		err := &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", cmd.NewStatus)}
		util.RequestOperationsFailedTotal.WithLabelValues("transition", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return nil, err
	}

	var updated models.PurchaseRequest
	var entry models.StatusHistoryEntry

	err := s.withIdempotency(ctx, "transition", cmd.RequestID, cmd.IdempotencyKey, func() error {
		return s.repo.WithinTx(ctx, func(tx store.RequestRepository) error {
			req, err := tx.LockRequest(ctx, cmd.RequestID)
			if err != nil {
				return notFound(err, cmd.RequestID)
			}

			if !CanTransition(req.Status, target) {
				return &InvalidTransitionError{From: req.Status, To: target}
			}

			now := s.stamp(req.UpdatedAt)
			if err := tx.UpdateRequest(ctx, req.ID, store.RequestUpdate{Status: &target, UpdatedAt: now}); err != nil {
				return notFound(err, cmd.RequestID)
			}

			entry = models.StatusHistoryEntry{
				RequestID:   req.ID,
				OldStatus:   req.Status,
				NewStatus:   target,
				PerformedBy: actor.ID,
				PerformedAt: now,
				Notes:       strings.TrimSpace(cmd.Notes),
			}
			if err := tx.AppendHistory(ctx, &entry); err != nil {
				return fmt.Errorf("failed to append history: %w", err)
			}

			req.Status = target
			req.UpdatedAt = now
			updated = *req
			return nil
		})
	})
	if err != nil {
		util.RequestOperationsFailedTotal.WithLabelValues("transition", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return nil, err
	}

	util.RequestTransitionsTotal.WithLabelValues(string(entry.OldStatus), string(entry.NewStatus)).Inc()
	s.logger.Info("Purchase request transitioned",
		zap.Int64("request_id", updated.ID),
		zap.String("from", string(entry.OldStatus)),
		zap.String("to", string(entry.NewStatus)),
		zap.Int64("actor_id", actor.ID))

	s.publishStatusChanged(ctx, &updated, &entry)
	return &updated, nil
}

// Revise changes the quantity of a pending or revised request and marks it revised
func (s *LifecycleService) Revise(ctx context.Context, actor Actor, cmd ReviseCommand) (*models.PurchaseRequest, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.Revise", util.RequestAttr(cmd.RequestID))
	defer span.End()

	if cmd.Quantity <= 0 {
		err := &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
		util.RequestOperationsFailedTotal.WithLabelValues("revise", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return nil, err
	}

	revised := models.RequestStatusRevised
	var updated models.PurchaseRequest
	var entry models.StatusHistoryEntry

	err := s.withIdempotency(ctx, "revise", cmd.RequestID, cmd.IdempotencyKey, func() error {
		return s.repo.WithinTx(ctx, func(tx store.RequestRepository) error {
			req, err := tx.LockRequest(ctx, cmd.RequestID)
			if err != nil {
				return notFound(err, cmd.RequestID)
			}

			if req.Status != models.RequestStatusPending && req.Status != models.RequestStatusRevised {
				return &InvalidTransitionError{From: req.Status, To: revised}
			}

			now := s.stamp(req.UpdatedAt)
			quantity := cmd.Quantity
			upd := store.RequestUpdate{Status: &revised, Quantity: &quantity, UpdatedAt: now}
			if cmd.Justification != nil {
				justification := strings.TrimSpace(*cmd.Justification)
				upd.Justification = &justification
				req.Justification = justification
			}
			if err := tx.UpdateRequest(ctx, req.ID, upd); err != nil {
				return notFound(err, cmd.RequestID)
			}

			entry = models.StatusHistoryEntry{
				RequestID:   req.ID,
				OldStatus:   req.Status,
				NewStatus:   revised,
				PerformedBy: actor.ID,
				PerformedAt: now,
				Notes:       strings.TrimSpace(cmd.Notes),
			}
			if err := tx.AppendHistory(ctx, &entry); err != nil {
				return fmt.Errorf("failed to append history: %w", err)
			}

			req.Status = revised
			req.Quantity = quantity
			req.UpdatedAt = now
			updated = *req
			return nil
		})
	})
	if err != nil {
		util.RequestOperationsFailedTotal.WithLabelValues("revise", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return nil, err
	}

	util.RequestTransitionsTotal.WithLabelValues(string(entry.OldStatus), string(entry.NewStatus)).Inc()
	s.logger.Info("Purchase request revised",
		zap.Int64("request_id", updated.ID),
		zap.Int("quantity", updated.Quantity),
		zap.Int64("actor_id", actor.ID))

	s.publishStatusChanged(ctx, &updated, &entry)
	return &updated, nil
}

// FollowUp appends a remark to the history without changing status
func (s *LifecycleService) FollowUp(ctx context.Context, actor Actor, cmd FollowUpCommand) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.FollowUp", util.RequestAttr(cmd.RequestID))
	defer span.End()

	notes := strings.TrimSpace(cmd.Notes)
	if notes == "" {
		err := &ValidationError{Field: "notes", Reason: "is required"}
		util.RequestOperationsFailedTotal.WithLabelValues("follow_up", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return err
	}

	var req *models.PurchaseRequest
	var entry models.StatusHistoryEntry

	err := s.withIdempotency(ctx, "follow_up", cmd.RequestID, cmd.IdempotencyKey, func() error {
		return s.repo.WithinTx(ctx, func(tx store.RequestRepository) error {
			var err error
			req, err = tx.LockRequest(ctx, cmd.RequestID)
			if err != nil {
				return notFound(err, cmd.RequestID)
			}

			entry = models.StatusHistoryEntry{
				RequestID:   req.ID,
				OldStatus:   req.Status,
				NewStatus:   req.Status,
				PerformedBy: actor.ID,
				PerformedAt: s.stamp(req.UpdatedAt),
				Notes:       notes,
			}
			if err := tx.AppendHistory(ctx, &entry); err != nil {
				return fmt.Errorf("failed to append history: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		util.RequestOperationsFailedTotal.WithLabelValues("follow_up", errorReason(err)).Inc()
		util.FailSpan(span, err)
		return err
	}

	util.RequestFollowUpsTotal.Inc()
	s.logger.Info("Purchase request followed up",
		zap.Int64("request_id", req.ID),
		zap.Int64("actor_id", actor.ID))

	if s.publisher != nil {
		event := &models.RequestFollowedUpEvent{
			BaseEvent:   newBaseEvent(models.EventTypeRequestFollowedUp),
			RequestID:   req.ID,
			RequesterID: req.RequesterID,
			BranchID:    req.BranchID,
			Status:      req.Status,
			PerformedBy: actor.ID,
			Notes:       notes,
		}
		if err := s.publisher.PublishRequestFollowedUp(ctx, event); err != nil {
			s.logger.Error("Failed to publish RequestFollowedUp event", zap.Error(err))
		}
	}
	return nil
}

// Get retrieves a request by ID
func (s *LifecycleService) Get(ctx context.Context, requestID int64) (*models.PurchaseRequest, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, notFound(err, requestID)
	}
	return req, nil
}

// List returns requests matching filter, newest first
func (s *LifecycleService) List(ctx context.Context, filter store.RequestFilter) ([]models.PurchaseRequest, error) {
	return s.repo.ListRequests(ctx, filter)
}

// History returns the status history of a request, oldest first. A request
// without history yields an empty slice.
func (s *LifecycleService) History(ctx context.Context, requestID int64) ([]models.StatusHistoryEntry, error) {
	if _, err := s.repo.GetRequest(ctx, requestID); err != nil {
		return nil, notFound(err, requestID)
	}

	entries, err := s.repo.ListHistory(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if entries == nil {
		entries = []models.StatusHistoryEntry{}
	}
	return entries, nil
}

// withIdempotency claims key for the operation and runs fn. The claim is
// released when fn fails so that a corrected retry may reuse the key.
func (s *LifecycleService) withIdempotency(ctx context.Context, op string, requestID int64, key string, fn func() error) error {
	key = strings.TrimSpace(key)
	if s.guard == nil || key == "" {
		return fn()
	}

	scoped := fmt.Sprintf("%s:%d:%s", op, requestID, key)
	claimed, err := s.guard.Claim(ctx, scoped)
	if err != nil {
		s.logger.Warn("Idempotency check failed, proceeding without it",
			zap.String("key", scoped),
			zap.Error(err))
		return fn()
	}
	if !claimed {
		util.DuplicateSubmissionsTotal.WithLabelValues(op).Inc()
		return &DuplicateError{Key: key}
	}

	if err := fn(); err != nil {
		if relErr := s.guard.Release(ctx, scoped); relErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", scoped), zap.Error(relErr))
		}
		return err
	}
	return nil
}

func (s *LifecycleService) publishStatusChanged(ctx context.Context, req *models.PurchaseRequest, entry *models.StatusHistoryEntry) {
	if s.publisher == nil {
		return
	}
	event := &models.RequestStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeRequestStatusChanged),
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		BranchID:    req.BranchID,
		OldStatus:   entry.OldStatus,
		NewStatus:   entry.NewStatus,
		PerformedBy: entry.PerformedBy,
		Notes:       entry.Notes,
	}
	if err := s.publisher.PublishRequestStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish RequestStatusChanged event", zap.Error(err))
	}
}

// stamp returns the current time, never earlier than prev
func (s *LifecycleService) stamp(prev time.Time) time.Time {
	now := s.now().UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func notFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: "purchase request", ID: id}
	}
	return err
}

// errorReason labels err for metrics
func errorReason(err error) string {
	var (
		validation *ValidationError
		missing    *NotFoundError
		transition *InvalidTransitionError
		duplicate  *DuplicateError
		forbidden  *ForbiddenError
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &missing):
		return "not_found"
	case errors.As(err, &transition):
		return "invalid_transition"
	case errors.As(err, &duplicate):
		return "duplicate"
	case errors.As(err, &forbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
