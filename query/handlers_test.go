package query

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/ledger"
	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

func seededStore(t *testing.T) *ledger.MemoryStore {
	t.Helper()
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	rows := []core.Transaction{
		{OrderID: "ORD-1", Kind: core.TransactionKindPayment, Status: core.TransactionStatusSuccess, Amount: decimal.NewFromInt(100)},
		{OrderID: "ORD-2", Kind: core.TransactionKindPayment, Status: core.TransactionStatusPending, Amount: decimal.NewFromInt(200)},
		{OrderID: "DSB-1", Kind: core.TransactionKindDisbursement, Status: core.TransactionStatusSuccess, Amount: decimal.NewFromInt(300)},
	}
	for _, row := range rows {
		if _, err := store.Create(ctx, row); err != nil {
			t.Fatalf("seed %s: %v", row.OrderID, err)
		}
	}
	return store
}

func TestStatusQueries_DelegateToGateway(t *testing.T) {
	reader := &stubStatusReader{
		payment:      map[string]any{"status": "SUCCESS"},
		disbursement: map[string]any{"status": "PROCESSING"},
		balance:      map[string]any{"balance": "1000000"},
	}
	ctx := context.Background()

	out, err := NewGetPaymentStatusQuery(reader).Query(ctx, GetPaymentStatusMessage{OrderID: " ORD-1 "})
	if err != nil {
		t.Fatalf("payment status: %v", err)
	}
	if out["status"] != "SUCCESS" || reader.lastOrderID != "ORD-1" {
		t.Fatalf("unexpected payment status call: %#v %q", out, reader.lastOrderID)
	}

	out, err = NewGetDisbursementStatusQuery(reader).Query(ctx, GetDisbursementStatusMessage{OrderID: "DSB-1"})
	if err != nil {
		t.Fatalf("disbursement status: %v", err)
	}
	if out["status"] != "PROCESSING" {
		t.Fatalf("unexpected disbursement status: %#v", out)
	}

	out, err = NewGetBalanceQuery(reader).Query(ctx, GetBalanceMessage{})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if out["balance"] != "1000000" {
		t.Fatalf("unexpected balance: %#v", out)
	}
}

func TestGetTransactionQuery_ByOrderAndByID(t *testing.T) {
	store := seededStore(t)
	qry := NewGetTransactionQuery(store)
	ctx := context.Background()

	byOrder, err := qry.Query(ctx, GetTransactionMessage{OrderID: "ORD-2", Kind: core.TransactionKindPayment})
	if err != nil {
		t.Fatalf("by order: %v", err)
	}
	if byOrder.Status != core.TransactionStatusPending {
		t.Fatalf("expected pending record, got %q", byOrder.Status)
	}

	byID, err := qry.Query(ctx, GetTransactionMessage{ID: byOrder.ID})
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if byID.OrderID != "ORD-2" {
		t.Fatalf("expected ORD-2, got %q", byID.OrderID)
	}

	_, err = qry.Query(ctx, GetTransactionMessage{OrderID: "ORD-2", Kind: core.TransactionKindDisbursement})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for other kind, got %v", err)
	}
}

func TestListTransactionsQuery_FiltersAndPages(t *testing.T) {
	store := seededStore(t)
	qry := NewListTransactionsQuery(store)

	page, err := qry.Query(context.Background(), ListTransactionsMessage{Filter: core.PaymentsFilter()})
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected two payments, got total=%d items=%d", page.Total, len(page.Items))
	}

	filter := core.TransactionFilter{Status: core.TransactionStatusSuccess, Limit: 1}
	page, err = qry.Query(context.Background(), ListTransactionsMessage{Filter: filter})
	if err != nil {
		t.Fatalf("list successful: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.Limit != 1 {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestMessagesValidate(t *testing.T) {
	err := (GetPaymentStatusMessage{}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
	if err := (GetTransactionMessage{OrderID: "ORD-1"}).Validate(); err == nil {
		t.Fatalf("expected missing kind to fail")
	}
	if err := (GetTransactionMessage{ID: "tx-1"}).Validate(); err != nil {
		t.Fatalf("expected id lookup to validate, got %v", err)
	}
	if err := (ListTransactionsMessage{Filter: core.TransactionFilter{Limit: -1}}).Validate(); err == nil {
		t.Fatalf("expected negative limit to fail")
	}
}

func TestNilQueryReturnsDependencyError(t *testing.T) {
	var qry *ListTransactionsQuery
	_, err := qry.Query(context.Background(), ListTransactionsMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubStatusReader struct {
	payment      map[string]any
	disbursement map[string]any
	balance      map[string]any
	lastOrderID  string
}

func (s *stubStatusReader) GetPaymentStatus(_ context.Context, orderID string) (map[string]any, error) {
	s.lastOrderID = orderID
	return s.payment, nil
}

func (s *stubStatusReader) GetDisbursementStatus(_ context.Context, orderID string) (map[string]any, error) {
	s.lastOrderID = orderID
	return s.disbursement, nil
}

func (s *stubStatusReader) GetBalance(context.Context) (map[string]any, error) {
	return s.balance, nil
}
