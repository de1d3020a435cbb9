package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a row addressed by id does not exist
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	BranchID    int64
	RequesterID int64
	Status      models.RequestStatus
	Limit       int
	Offset      int
}

// RequestUpdate carries the columns to change on a purchase request.
// Nil fields are left untouched; UpdatedAt is always written.
type RequestUpdate struct {
	Status        *models.RequestStatus
	Quantity      *int
	Justification *string
	UpdatedAt     time.Time
}

// RequestRepository persists purchase requests and their status history
type RequestRepository interface {
	CreateRequest(ctx context.Context, req *models.PurchaseRequest) error
	GetRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error)
	// LockRequest reads a request and holds it against concurrent writers
	// until the surrounding transaction ends.
	LockRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error)
	UpdateRequest(ctx context.Context, id int64, upd RequestUpdate) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.PurchaseRequest, error)
	AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	ListHistory(ctx context.Context, requestID int64) ([]models.StatusHistoryEntry, error)
	WithinTx(ctx context.Context, fn func(RequestRepository) error) error
}

// InventoryRepository persists inventory items
type InventoryRepository interface {
	CreateItem(ctx context.Context, item *models.InventoryItem) error
	GetItem(ctx context.Context, id int64) (*models.InventoryItem, error)
	ListItems(ctx context.Context, branchID int64) ([]models.InventoryItem, error)
	UpdateItem(ctx context.Context, item *models.InventoryItem) error
	DeleteItem(ctx context.Context, id int64) error
}

// UserRepository reads staff accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

// NewStoreFromDB wraps an existing connection
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

// WithinTx runs fn against a store bound to one transaction. The
// transaction is rolled back when fn fails and committed otherwise. Calls
// made on a store that is already transactional reuse that transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(RequestRepository) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// clampPagination normalises limit/offset for list queries.
// Default limit=50, max limit=200, offset>=0.
func clampPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
