package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-bdpay/core"
)

func TestMemoryStore_CreateRejectsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	tx := core.Transaction{OrderID: "ORD-1", Kind: core.TransactionKindPayment, Status: core.TransactionStatusPending}

	if _, err := store.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.Create(ctx, tx)
	if !errors.Is(err, core.ErrDuplicateRecord) {
		t.Fatalf("expected duplicate record; got %v", err)
	}
}

func TestMemoryStore_MissingLookups(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.FindByOrder(ctx, "nope", core.TransactionKindPayment); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found; got %v", err)
	}
	if _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found; got %v", err)
	}
	if _, err := store.Update(ctx, core.Transaction{ID: "nope"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found; got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	created, err := store.Create(ctx, core.Transaction{
		OrderID:     "ORD-1",
		Kind:        core.TransactionKindPayment,
		RequestData: map[string]any{"a": "1"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created.RequestData["a"] = "mutated"

	stored, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.RequestData["a"] != "1" {
		t.Fatalf("expected stored record isolated from caller mutations")
	}
}

func TestMemoryStore_ListFiltersOrdersAndPages(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []core.Transaction{
		{OrderID: "A", Kind: core.TransactionKindPayment, Status: core.TransactionStatusPending, CreatedAt: base},
		{OrderID: "B", Kind: core.TransactionKindPayment, Status: core.TransactionStatusSuccess, CreatedAt: base.Add(time.Minute)},
		{OrderID: "C", Kind: core.TransactionKindPayment, Status: core.TransactionStatusPending, CreatedAt: base.Add(2 * time.Minute)},
		{OrderID: "D", Kind: core.TransactionKindDisbursement, Status: core.TransactionStatusPending, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, tx := range seed {
		if _, err := store.Create(ctx, tx); err != nil {
			t.Fatalf("create %s: %v", tx.OrderID, err)
		}
	}

	records, total, err := store.List(ctx, core.PaymentsFilter())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || records[0].OrderID != "C" || records[2].OrderID != "A" {
		t.Fatalf("expected payments newest first; got total=%d %v", total, orderIDs(records))
	}

	records, total, err = store.List(ctx, core.TransactionFilter{Status: core.TransactionStatusPending, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if total != 3 || len(records) != 1 || records[0].OrderID != "C" {
		t.Fatalf("expected second newest pending; got total=%d %v", total, orderIDs(records))
	}

	records, _, err = store.List(ctx, core.TransactionFilter{Offset: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty page; got %v", orderIDs(records))
	}
}

func orderIDs(records []core.Transaction) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.OrderID)
	}
	return ids
}
