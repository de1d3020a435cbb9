package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"procurement-service/internal/models"
)

type memoryState struct {
	requests map[int64]models.PurchaseRequest
	history  []models.StatusHistoryEntry
	items    map[int64]models.InventoryItem
	users    map[int64]models.User

	nextRequestID int64
	nextHistoryID int64
	nextItemID    int64
	nextUserID    int64
}

// MemoryStore keeps everything in process memory. WithinTx serializes
// transactions and undoes only the transaction's own writes when fn fails.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state memoryState
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			requests: make(map[int64]models.PurchaseRequest),
			items:    make(map[int64]models.InventoryItem),
			users:    make(map[int64]models.User),
		},
	}
}

// WithinTx runs fn with exclusive access against other transactions.
// Writes made outside fn are left alone on rollback and IDs are never reused.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(RequestRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{MemoryStore: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx records an undo step for every write it makes
type memoryTx struct {
	*MemoryStore
	undo []func(*memoryState)
}

func (tx *memoryTx) WithinTx(ctx context.Context, fn func(RequestRepository) error) error {
	return fn(tx)
}

func (tx *memoryTx) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	if err := tx.MemoryStore.CreateRequest(ctx, req); err != nil {
		return err
	}
	id := req.ID
	tx.undo = append(tx.undo, func(s *memoryState) { delete(s.requests, id) })
	return nil
}

func (tx *memoryTx) UpdateRequest(ctx context.Context, id int64, upd RequestUpdate) error {
	tx.mu.RLock()
	prev, ok := tx.state.requests[id]
	tx.mu.RUnlock()

	if err := tx.MemoryStore.UpdateRequest(ctx, id, upd); err != nil {
		return err
	}
	if ok {
		tx.undo = append(tx.undo, func(s *memoryState) {
			if _, exists := s.requests[id]; exists {
				s.requests[id] = prev
			}
		})
	}
	return nil
}

func (tx *memoryTx) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	if err := tx.MemoryStore.AppendHistory(ctx, entry); err != nil {
		return err
	}
	id := entry.ID
	tx.undo = append(tx.undo, func(s *memoryState) {
		for i, e := range s.history {
			if e.ID == id {
				s.history = append(s.history[:i], s.history[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i](&tx.state)
	}
	tx.undo = nil
}

func (m *MemoryStore) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.nextRequestID++
	req.ID = m.state.nextRequestID
	m.state.requests[req.ID] = *req
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.state.requests[id]
	if !ok {
		return nil, fmt.Errorf("purchase request %d: %w", id, ErrNotFound)
	}
	return &req, nil
}

// LockRequest is GetRequest; WithinTx already excludes other writers
func (m *MemoryStore) LockRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	return m.GetRequest(ctx, id)
}

func (m *MemoryStore) UpdateRequest(ctx context.Context, id int64, upd RequestUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.state.requests[id]
	if !ok {
		return fmt.Errorf("purchase request %d: %w", id, ErrNotFound)
	}
	if upd.Status != nil {
		req.Status = *upd.Status
	}
	if upd.Quantity != nil {
		req.Quantity = *upd.Quantity
	}
	if upd.Justification != nil {
		req.Justification = *upd.Justification
	}
	req.UpdatedAt = upd.UpdatedAt
	m.state.requests[id] = req
	return nil
}

func (m *MemoryStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.PurchaseRequest, error) {
	limit, offset := clampPagination(filter.Limit, filter.Offset)

	m.mu.RLock()
	out := make([]models.PurchaseRequest, 0, len(m.state.requests))
	for _, req := range m.state.requests {
		if filter.BranchID != 0 && req.BranchID != filter.BranchID {
			continue
		}
		if filter.RequesterID != 0 && req.RequesterID != filter.RequesterID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if offset >= len(out) {
		return []models.PurchaseRequest{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.requests[entry.RequestID]; !ok {
		return fmt.Errorf("purchase request %d: %w", entry.RequestID, ErrNotFound)
	}
	m.state.nextHistoryID++
	entry.ID = m.state.nextHistoryID
	m.state.history = append(m.state.history, *entry)
	return nil
}

func (m *MemoryStore) ListHistory(ctx context.Context, requestID int64) ([]models.StatusHistoryEntry, error) {
	m.mu.RLock()
	out := []models.StatusHistoryEntry{}
	for _, e := range m.state.history {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PerformedAt.Equal(out[j].PerformedAt) {
			return out[i].PerformedAt.Before(out[j].PerformedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.nextItemID++
	item.ID = m.state.nextItemID
	m.state.items[item.ID] = *item
	return nil
}

func (m *MemoryStore) GetItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.state.items[id]
	if !ok {
		return nil, fmt.Errorf("inventory item %d: %w", id, ErrNotFound)
	}
	return &item, nil
}

func (m *MemoryStore) ListItems(ctx context.Context, branchID int64) ([]models.InventoryItem, error) {
	m.mu.RLock()
	out := []models.InventoryItem{}
	for _, item := range m.state.items {
		if branchID == 0 || item.BranchID == branchID {
			out = append(out, item)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateItem(ctx context.Context, item *models.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.items[item.ID]; !ok {
		return fmt.Errorf("inventory item %d: %w", item.ID, ErrNotFound)
	}
	m.state.items[item.ID] = *item
	return nil
}

func (m *MemoryStore) DeleteItem(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.items[id]; !ok {
		return fmt.Errorf("inventory item %d: %w", id, ErrNotFound)
	}
	delete(m.state.items, id)
	return nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.state.users {
		if strings.EqualFold(u.Username, user.Username) {
			return fmt.Errorf("username %q already taken", user.Username)
		}
	}
	m.state.nextUserID++
	user.ID = m.state.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.state.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.state.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return &user, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.state.users {
		if strings.EqualFold(u.Username, username) {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
}

func (m *MemoryStore) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	m.mu.RLock()
	out := []models.User{}
	for _, u := range m.state.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
