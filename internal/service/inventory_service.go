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

	"go.uber.org/zap"
)

// InventoryService manages the assets held by each branch
type InventoryService struct {
	repo   store.InventoryRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewInventoryService creates a new inventory service
func NewInventoryService(repo store.InventoryRepository) *InventoryService {
	return &InventoryService{
		repo:   repo,
		logger: util.ComponentLogger("inventory"),
		now:    time.Now,
	}
}

// ItemInput carries the editable fields of an inventory item
type ItemInput struct {
	BranchID int64
	Name     string
	Category string
	Status   string
	Quantity int
}

// Create adds an item to a branch. Only custodians change inventory;
// a blank status defaults to good.
func (s *InventoryService) Create(ctx context.Context, actor Actor, in ItemInput) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Create")
	defer span.End()

	if in.BranchID == 0 {
		in.BranchID = actor.BranchID
	}
	if err := authorizeItemWrite(actor, in.BranchID); err != nil {
		return nil, err
	}
	if err := validateItem(in); err != nil {
		return nil, err
	}

	status := models.ItemStatusGood
	if strings.TrimSpace(in.Status) != "" {
		parsed, ok := models.ParseItemStatus(in.Status)
		if !ok {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown item status %q", in.Status)}
		}
		status = parsed
	}

	now := s.now().UTC()
	item := &models.InventoryItem{
		BranchID:  in.BranchID,
		Name:      strings.TrimSpace(in.Name),
		Category:  strings.TrimSpace(in.Category),
		Status:    status,
		Quantity:  in.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create inventory item: %w", err)
	}

	util.InventoryChangesTotal.WithLabelValues("create").Inc()
	s.logger.Info("Inventory item created",
		zap.Int64("item_id", item.ID),
		zap.Int64("branch_id", item.BranchID),
		zap.Int64("actor_id", actor.ID))
	return item, nil
}

// Get retrieves an item visible to the actor
func (s *InventoryService) Get(ctx context.Context, actor Actor, id int64) (*models.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, itemNotFound(err, id)
	}
	if err := authorizeBranch(actor, item.BranchID); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns the items of a branch. Custodians always get their own
// branch; managers get every branch when branchID is 0.
func (s *InventoryService) List(ctx context.Context, actor Actor, branchID int64) ([]models.InventoryItem, error) {
	if !actor.IsManager() {
		if branchID != 0 && branchID != actor.BranchID {
			return nil, &ForbiddenError{Role: actor.Role, Action: "act on another branch"}
		}
		branchID = actor.BranchID
	}
	return s.repo.ListItems(ctx, branchID)
}

// Update changes name, category and quantity of an item
func (s *InventoryService) Update(ctx context.Context, actor Actor, id int64, in ItemInput) (*models.InventoryItem, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Update")
	defer span.End()

	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeItemWrite(actor, item.BranchID); err != nil {
		return nil, err
	}
	in.BranchID = item.BranchID
	if err := validateItem(in); err != nil {
		return nil, err
	}

	item.Name = strings.TrimSpace(in.Name)
	item.Category = strings.TrimSpace(in.Category)
	item.Quantity = in.Quantity
	if strings.TrimSpace(in.Status) != "" {
		parsed, ok := models.ParseItemStatus(in.Status)
		if !ok {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown item status %q", in.Status)}
		}
		item.Status = parsed
	}
	if err := s.save(ctx, actor, item, "update"); err != nil {
		return nil, err
	}
	return item, nil
}

// SetStatus changes only the condition of an item
func (s *InventoryService) SetStatus(ctx context.Context, actor Actor, id int64, raw string) (*models.InventoryItem, error) {
	status, ok := models.ParseItemStatus(raw)
	if !ok {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown item status %q", raw)}
	}

	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeItemWrite(actor, item.BranchID); err != nil {
		return nil, err
	}
	item.Status = status
	if err := s.save(ctx, actor, item, "set_status"); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item
func (s *InventoryService) Delete(ctx context.Context, actor Actor, id int64) error {
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := authorizeItemWrite(actor, item.BranchID); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return itemNotFound(err, id)
	}

	util.InventoryChangesTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Inventory item deleted", zap.Int64("item_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

func (s *InventoryService) save(ctx context.Context, actor Actor, item *models.InventoryItem, action string) error {
	now := s.now().UTC()
	if now.After(item.UpdatedAt) {
		item.UpdatedAt = now
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return itemNotFound(err, item.ID)
	}

	util.InventoryChangesTotal.WithLabelValues(action).Inc()
	s.logger.Info("Inventory item updated",
		zap.Int64("item_id", item.ID),
		zap.String("action", action),
		zap.String("status", string(item.Status)),
		zap.Int64("actor_id", actor.ID))
	return nil
}

func validateItem(in ItemInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if in.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if in.BranchID <= 0 {
		return &ValidationError{Field: "branch_id", Reason: "is required"}
	}
	return nil
}

func itemNotFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: "inventory item", ID: id}
	}
	return err
}
