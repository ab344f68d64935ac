package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-bdpay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubTransactionStore struct {
	mu        sync.Mutex
	row       core.Transaction
	findCalls int
	getCalls  int
	updateErr error
}

func (s *stubTransactionStore) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.row = tx.Clone()
	return tx, nil
}

func (s *stubTransactionStore) FindByOrder(_ context.Context, orderID string, kind core.TransactionKind) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.row.OrderID != orderID || s.row.Kind != kind {
		return core.Transaction{}, core.NotFoundError(orderID, kind)
	}
	return s.row.Clone(), nil
}

func (s *stubTransactionStore) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.row.ID != id {
		return core.Transaction{}, core.NotFoundError(id, "")
	}
	return s.row.Clone(), nil
}

func (s *stubTransactionStore) Update(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return core.Transaction{}, s.updateErr
	}
	s.row = tx.Clone()
	return tx, nil
}

func (s *stubTransactionStore) List(context.Context, core.TransactionFilter) ([]core.Transaction, int, error) {
	return []core.Transaction{s.row.Clone()}, 1, nil
}

func TestCachedTransactionStore_MissFetchThenHit(t *testing.T) {
	base := &stubTransactionStore{row: core.Transaction{
		ID:      "tx-1",
		OrderID: "ORD-1",
		Kind:    core.TransactionKindPayment,
		Status:  core.TransactionStatusPending,
	}}
	store, err := NewCachedTransactionStore(base, newTestTransactionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := store.FindByOrder(ctx, "ORD-1", core.TransactionKindPayment); err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
		if _, err := store.Get(ctx, "tx-1"); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if base.findCalls != 1 || base.getCalls != 1 {
		t.Fatalf("expected one base read per key, got find=%d get=%d", base.findCalls, base.getCalls)
	}
}

func TestCachedTransactionStore_UpdateInvalidates(t *testing.T) {
	base := &stubTransactionStore{row: core.Transaction{
		ID:      "tx-1",
		OrderID: "ORD-1",
		Kind:    core.TransactionKindPayment,
		Status:  core.TransactionStatusPending,
	}}
	store, err := NewCachedTransactionStore(base, newTestTransactionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.FindByOrder(ctx, "ORD-1", core.TransactionKindPayment); err != nil {
		t.Fatalf("warm: %v", err)
	}

	next := base.row.Clone()
	next.Status = core.TransactionStatusSuccess
	if _, err := store.Update(ctx, next); err != nil {
		t.Fatalf("update: %v", err)
	}
	found, err := store.FindByOrder(ctx, "ORD-1", core.TransactionKindPayment)
	if err != nil {
		t.Fatalf("find after update: %v", err)
	}
	if found.Status != core.TransactionStatusSuccess || base.findCalls != 2 {
		t.Fatalf("expected refetch after update, got %s after %d calls", found.Status, base.findCalls)
	}

	base.updateErr = errors.New("db down")
	if _, err := store.Update(ctx, next); err == nil {
		t.Fatalf("expected base update error")
	}
}

func TestCachedTransactionStore_NotFoundIsNotCached(t *testing.T) {
	base := &stubTransactionStore{}
	store, err := NewCachedTransactionStore(base, newTestTransactionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.FindByOrder(ctx, "ORD-9", core.TransactionKindPayment); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Create(ctx, core.Transaction{ID: "tx-9", OrderID: "ORD-9", Kind: core.TransactionKindPayment}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.FindByOrder(ctx, "ORD-9", core.TransactionKindPayment); err != nil {
		t.Fatalf("expected created row to be visible, got %v", err)
	}
}

func TestTransactionCacheKeys(t *testing.T) {
	if got := TransactionOrderCacheKey(" ORD/1 ", core.TransactionKindPayment); got != "go-bdpay::transaction::v1::payment::ORD%2F1" {
		t.Fatalf("unexpected order key %q", got)
	}
	if got := TransactionIDCacheKey("abc"); got != "go-bdpay::transaction::v1::id::abc" {
		t.Fatalf("unexpected id key %q", got)
	}
	if _, err := NewCachedTransactionStore(nil, nil); err == nil {
		t.Fatalf("expected constructor validation error")
	}
}

func newTestTransactionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
