package models

import (
	"database/sql"
	"time"
)

// Branch is an office location owning inventory and requests
type Branch struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User is an authenticated staff member
type User struct {
	ID           int64         `db:"id" json:"id"`
	Username     string        `db:"username" json:"username"`
	PasswordHash string        `db:"password_hash" json:"-"`
	FullName     string        `db:"full_name" json:"full_name"`
	Email        string        `db:"email" json:"email"`
	Role         Role          `db:"role" json:"role"`
	BranchID     sql.NullInt64 `db:"branch_id" json:"-"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// InventoryItem is a tracked asset held by a branch
type InventoryItem struct {
	ID        int64      `db:"id" json:"id"`
	BranchID  int64      `db:"branch_id" json:"branch_id"`
	Name      string     `db:"name" json:"name"`
	Category  string     `db:"category" json:"category"`
	Status    ItemStatus `db:"status" json:"status"`
	Quantity  int        `db:"quantity" json:"quantity"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// PurchaseRequest is a job-order or purchase-order requisition
type PurchaseRequest struct {
	ID            int64         `db:"id" json:"id"`
	RequesterID   int64         `db:"requester_id" json:"requester_id"`
	BranchID      int64         `db:"branch_id" json:"branch_id"`
	ItemRef       string        `db:"item_ref" json:"item_ref"`
	Type          RequestType   `db:"request_type" json:"request_type"`
	Quantity      int           `db:"quantity" json:"quantity"`
	Status        RequestStatus `db:"status" json:"status"`
	Justification string        `db:"justification" json:"justification,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// StatusHistoryEntry records one status change (or annotation) of a request.
// Entries are append-only.
type StatusHistoryEntry struct {
	ID          int64         `db:"id" json:"id"`
	RequestID   int64         `db:"request_id" json:"request_id"`
	OldStatus   RequestStatus `db:"old_status" json:"old_status"`
	NewStatus   RequestStatus `db:"new_status" json:"new_status"`
	PerformedBy int64         `db:"performed_by" json:"performed_by"`
	PerformedAt time.Time     `db:"performed_at" json:"performed_at"`
	Notes       string        `db:"notes" json:"notes,omitempty"`
}

// Roles
type Role string

const (
	RoleCustodian          Role = "custodian"
	RoleProcurementManager Role = "procurement_manager"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleCustodian || r == RoleProcurementManager
}

// Request types
type RequestType string

const (
	RequestTypeJobOrder      RequestType = "job_order"
	RequestTypePurchaseOrder RequestType = "purchase_order"
)

// Valid reports whether t is a known request type
func (t RequestType) Valid() bool {
	return t == RequestTypeJobOrder || t == RequestTypePurchaseOrder
}
