package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const requestColumns = `id, requester_id, branch_id, item_ref, request_type, quantity, status, justification, created_at, updated_at`

// CreateRequest inserts a new purchase request and assigns its id
func (s *Store) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	query := `
		INSERT INTO purchase_requests (requester_id, branch_id, item_ref, request_type, quantity, status, justification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return sqlx.GetContext(ctx, s.q, &req.ID, query,
		req.RequesterID, req.BranchID, req.ItemRef, req.Type, req.Quantity,
		req.Status, req.Justification, req.CreatedAt, req.UpdatedAt)
}

// GetRequest retrieves a purchase request by ID
func (s *Store) GetRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	return s.getRequest(ctx, "SELECT "+requestColumns+" FROM purchase_requests WHERE id = $1", id)
}

// LockRequest retrieves a purchase request and locks its row (FOR UPDATE)
func (s *Store) LockRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	return s.getRequest(ctx, "SELECT "+requestColumns+" FROM purchase_requests WHERE id = $1 FOR UPDATE", id)
}

func (s *Store) getRequest(ctx context.Context, query string, id int64) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	err := sqlx.GetContext(ctx, s.q, &req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateRequest writes the non-nil fields of upd
func (s *Store) UpdateRequest(ctx context.Context, id int64, upd RequestUpdate) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Quantity != nil {
		add("quantity", *upd.Quantity)
	}
	if upd.Justification != nil {
		add("justification", *upd.Justification)
	}
	add("updated_at", upd.UpdatedAt)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE purchase_requests SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update purchase request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("purchase request %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListRequests returns requests matching filter, newest first
func (s *Store) ListRequests(ctx context.Context, filter RequestFilter) ([]models.PurchaseRequest, error) {
	limit, offset := clampPagination(filter.Limit, filter.Offset)

	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.BranchID != 0 {
		args = append(args, filter.BranchID)
		where = append(where, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if filter.RequesterID != 0 {
		args = append(args, filter.RequesterID)
		where = append(where, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + requestColumns + " FROM purchase_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	requests := []models.PurchaseRequest{}
	if err := sqlx.SelectContext(ctx, s.q, &requests, query, args...); err != nil {
		return nil, err
	}
	return requests, nil
}

// AppendHistory inserts a status history entry and assigns its id
func (s *Store) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO status_history (request_id, old_status, new_status, performed_by, performed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return sqlx.GetContext(ctx, s.q, &entry.ID, query,
		entry.RequestID, entry.OldStatus, entry.NewStatus, entry.PerformedBy, entry.PerformedAt, entry.Notes)
}

// ListHistory returns a request's history ordered by performed_at
func (s *Store) ListHistory(ctx context.Context, requestID int64) ([]models.StatusHistoryEntry, error) {
	entries := []models.StatusHistoryEntry{}
	err := sqlx.SelectContext(ctx, s.q, &entries, `
		SELECT id, request_id, old_status, new_status, performed_by, performed_at, notes
		FROM status_history
		WHERE request_id = $1
		ORDER BY performed_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
