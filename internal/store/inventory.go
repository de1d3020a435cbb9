package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const itemColumns = `id, branch_id, name, category, status, quantity, created_at, updated_at`

// CreateItem inserts an inventory item and assigns its id
func (s *Store) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (branch_id, name, category, status, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return sqlx.GetContext(ctx, s.q, &item.ID, query,
		item.BranchID, item.Name, item.Category, item.Status, item.Quantity, item.CreatedAt, item.UpdatedAt)
}

// GetItem retrieves an inventory item by ID
func (s *Store) GetItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := sqlx.GetContext(ctx, s.q, &item, "SELECT "+itemColumns+" FROM inventory_items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inventory item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns the items of a branch, or of every branch when branchID is 0
func (s *Store) ListItems(ctx context.Context, branchID int64) ([]models.InventoryItem, error) {
	items := []models.InventoryItem{}
	var err error
	if branchID == 0 {
		err = sqlx.SelectContext(ctx, s.q, &items, "SELECT "+itemColumns+" FROM inventory_items ORDER BY name, id")
	} else {
		err = sqlx.SelectContext(ctx, s.q, &items,
			"SELECT "+itemColumns+" FROM inventory_items WHERE branch_id = $1 ORDER BY name, id", branchID)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem overwrites the mutable columns of an item
func (s *Store) UpdateItem(ctx context.Context, item *models.InventoryItem) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE inventory_items SET name = $1, category = $2, status = $3, quantity = $4, updated_at = $5 WHERE id = $6",
		item.Name, item.Category, item.Status, item.Quantity, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update inventory item: %w", err)
	}
	return expectOneRow(res, "inventory item", item.ID)
}

// DeleteItem removes an inventory item
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM inventory_items WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	return expectOneRow(res, "inventory item", id)
}

func expectOneRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
