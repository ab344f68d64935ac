package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/ledger"
	goerrors "github.com/goliatone/go-errors"
)

func newTestReconciler(t *testing.T, opts ...ledger.Option) (*Reconciler, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	l, err := ledger.New(store, opts...)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	reconciler, err := NewReconciler(l)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return reconciler, store
}

type failingRecorder struct {
	err error
}

func (r failingRecorder) Reconcile(context.Context, string, core.TransactionKind, core.TransactionStatus, map[string]any) (core.Transaction, error) {
	return core.Transaction{}, r.err
}

func TestReconciler_CreatesAndAppliesStatus(t *testing.T) {
	reconciler, store := newTestReconciler(t)
	ctx := context.Background()

	ack, err := reconciler.Process(ctx, core.TransactionKindPayment, map[string]any{
		"order_id":  "ORD-1",
		"status":    "PAID",
		"amount":    json.Number("50000"),
		"va_number": "8808001",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ack.Status != AckStatusSuccess || ack.Stale {
		t.Fatalf("unexpected ack %#v", ack)
	}

	record, err := store.FindByOrder(ctx, "ORD-1", core.TransactionKindPayment)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != core.TransactionStatusSuccess || record.PaidAt == nil {
		t.Fatalf("expected paid record; got %#v", record)
	}
	if record.VANumber != "8808001" || record.Amount.String() != "50000" {
		t.Fatalf("unexpected stored fields %#v", record)
	}
}

func TestReconciler_MissingStatusDefaultsToPending(t *testing.T) {
	reconciler, store := newTestReconciler(t)
	if _, err := reconciler.Process(context.Background(), core.TransactionKindDisbursement, map[string]any{"order_id": "WD-1"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	record, err := store.FindByOrder(context.Background(), "WD-1", core.TransactionKindDisbursement)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != core.TransactionStatusPending {
		t.Fatalf("expected pending; got %q", record.Status)
	}
}

func TestReconciler_MissingOrderIDCreatesNothing(t *testing.T) {
	reconciler, store := newTestReconciler(t)
	for _, payload := range []map[string]any{
		{"status": "success"},
		{"order_id": "", "status": "success"},
		{"order_id": nil},
	} {
		_, err := reconciler.Process(context.Background(), core.TransactionKindPayment, payload)
		if !errors.Is(err, core.ErrMissingOrderID) {
			t.Fatalf("expected missing order id; got %v", err)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) || rich.Code != http.StatusBadRequest || rich.Message != core.MissingOrderIDMessage {
			t.Fatalf("expected 400 with callback message; got %v", err)
		}
	}
	if _, total, _ := store.List(context.Background(), core.TransactionFilter{}); total != 0 {
		t.Fatalf("expected no records; got %d", total)
	}
}

func TestReconciler_StaleTransitionIsAcknowledged(t *testing.T) {
	reconciler, store := newTestReconciler(t, ledger.WithTransitionPolicy(ledger.RejectRegressionPolicy{}))
	ctx := context.Background()

	if _, err := reconciler.Process(ctx, core.TransactionKindPayment, map[string]any{"order_id": "ORD-2", "status": "success"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	ack, err := reconciler.Process(ctx, core.TransactionKindPayment, map[string]any{"order_id": "ORD-2", "status": "pending"})
	if err != nil {
		t.Fatalf("stale callback should be acknowledged: %v", err)
	}
	if !ack.Stale || ack.Status != AckStatusSuccess {
		t.Fatalf("expected stale ack; got %#v", ack)
	}
	record, _ := store.FindByOrder(ctx, "ORD-2", core.TransactionKindPayment)
	if record.Status != core.TransactionStatusSuccess {
		t.Fatalf("expected status unchanged; got %q", record.Status)
	}
}

func TestReconciler_StoreFailuresBecomeInternal(t *testing.T) {
	reconciler, err := NewReconciler(failingRecorder{err: errors.New("db: connection reset")})
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	_, err = reconciler.Process(context.Background(), core.TransactionKindPayment, map[string]any{"order_id": "ORD-3"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsCallerError(err) {
		t.Fatalf("expected store failure not to be a caller error")
	}
	if !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal text code; got %v", err)
	}
}

func TestReconciler_RecordsMetrics(t *testing.T) {
	metrics := &countingMetrics{}
	store := ledger.NewMemoryStore()
	l, _ := ledger.New(store, ledger.WithClock(func() time.Time { return time.Unix(0, 0) }))
	reconciler, err := NewReconciler(l, WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	_, _ = reconciler.Process(context.Background(), core.TransactionKindPayment, map[string]any{"order_id": "ORD-4"})
	_, _ = reconciler.Process(context.Background(), core.TransactionKindPayment, map[string]any{})
	if metrics.counts["success"] != 1 || metrics.counts["failure"] != 1 {
		t.Fatalf("unexpected counter tags %#v", metrics.counts)
	}
}

type countingMetrics struct {
	counts map[string]int
}

func (m *countingMetrics) IncCounter(_ context.Context, _ string, value int64, tags map[string]string) {
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[tags["status"]] += int(value)
}

func (m *countingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}
