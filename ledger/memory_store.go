package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/google/uuid"
)

// MemoryStore is a TransactionStore kept in process memory. The mutex plays
// the role of the unique (order_id, type) index.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.Transaction
	byOrder map[string]string
	Now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]core.Transaction{},
		byOrder: map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryStore) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	key := orderKey(tx.OrderID, tx.Kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byOrder[key]; exists {
		return core.Transaction{}, core.DuplicateRecordError(tx.OrderID, tx.Kind)
	}
	record := tx.Clone()
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	s.records[record.ID] = record
	s.byOrder[key] = record.ID
	return record.Clone(), nil
}

func (s *MemoryStore) FindByOrder(_ context.Context, orderID string, kind core.TransactionKind) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrder[orderKey(orderID, kind)]
	if !ok {
		return core.Transaction{}, core.NotFoundError(orderID, kind)
	}
	return s.records[id].Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return core.Transaction{}, core.NotFoundError(id, "")
	}
	return record.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[tx.ID]
	if !ok {
		return core.Transaction{}, core.NotFoundError(tx.OrderID, tx.Kind)
	}
	record := tx.Clone()
	record.OrderID = current.OrderID
	record.Kind = current.Kind
	record.CreatedAt = current.CreatedAt
	if current.PaidAt != nil {
		paidAt := *current.PaidAt
		record.PaidAt = &paidAt
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}
	s.records[record.ID] = record
	return record.Clone(), nil
}

// List returns matching records ordered by created_at descending, with the
// total count before paging.
func (s *MemoryStore) List(_ context.Context, filter core.TransactionFilter) ([]core.Transaction, int, error) {
	s.mu.RLock()
	matched := make([]core.Transaction, 0, len(s.records))
	for _, record := range s.records {
		if filter.Matches(record) {
			matched = append(matched, record.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []core.Transaction{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func orderKey(orderID string, kind core.TransactionKind) string {
	return string(kind) + "\x00" + strings.TrimSpace(orderID)
}
