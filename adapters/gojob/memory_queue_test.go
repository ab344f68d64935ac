package gojob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/ledger"
	"github.com/goliatone/go-bdpay/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

type collectingSink struct {
	mu      sync.Mutex
	letters []core.DeadLetter
}

func (s *collectingSink) Send(_ context.Context, letter core.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, letter)
	return nil
}

func TestMemoryQueue_DequeueBlocksUntilCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	delivery, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) || delivery != nil {
		t.Fatalf("expected deadline error, got %v %#v", err, delivery)
	}
}

func TestMemoryQueue_DelayedRequeueAndDeadLetter(t *testing.T) {
	ctx := context.Background()
	sink := &collectingSink{}
	q := NewMemoryQueue(4)
	q.DeadLetters = sink
	defer q.Close()

	msg := &job.ExecutionMessage{
		JobID:          JobIDReconcile,
		IdempotencyKey: "payment:abc",
		Parameters: map[string]any{
			"type":    "payment",
			"payload": map[string]any{"order_id": "ORD-1"},
		},
	}
	if err := q.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	first, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := first.Nack(ctx, queue.NackOptions{Requeue: true, Delay: 10 * time.Millisecond}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected delayed message to be held back")
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := q.Dequeue(waitCtx)
	if err != nil {
		t.Fatalf("dequeue requeued: %v", err)
	}
	if second.Message().IdempotencyKey != "payment:abc" {
		t.Fatalf("unexpected message %#v", second.Message())
	}

	if err := second.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: "boom"}); err != nil {
		t.Fatalf("dead letter: %v", err)
	}
	if len(sink.letters) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(sink.letters))
	}
	letter := sink.letters[0]
	if letter.Surface != "payment" || letter.Error != "boom" || string(letter.Body) != `{"order_id":"ORD-1"}` {
		t.Fatalf("unexpected dead letter %#v", letter)
	}
}

func TestMemoryQueue_CloseRejectsEnqueue(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Enqueue(context.Background(), &job.ExecutionMessage{JobID: JobIDReconcile}); err == nil {
		t.Fatalf("expected closed queue to reject enqueue")
	}
}

func TestMemoryQueue_AsyncCallbacksReachLedger(t *testing.T) {
	store := ledger.NewMemoryStore()
	l, err := ledger.New(store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	reconciler, err := webhooks.NewReconciler(l)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	q := NewMemoryQueue(8)
	defer q.Close()
	handler := webhooks.NewAsyncHandler(core.TransactionKindPayment, NewEnqueuerAdapter(q))
	runner := webhooks.NewJobRunner(NewDequeuerAdapter(q, DefaultRetryPolicy()), reconciler)
	settled := &settledHook{done: make(chan struct{}, 3)}
	runner.Hooks = []core.JobWorkerHook{settled}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	bodies := [][]byte{
		[]byte(`{"order_id":"ORD-9","status":"PAID"}`),
		[]byte(`{"order_id":"ORD-9","status":"FAILED"}`),
		[]byte(`{"order_id":"ORD-9","status":"PAID"}`),
	}
	for i, body := range bodies {
		result, err := handler.Handle(ctx, core.InboundRequest{Surface: "payment", Body: body})
		if err != nil || !result.Accepted {
			t.Fatalf("queue %d: %v %#v", i, err, result)
		}
	}

	for i := range bodies {
		select {
		case <-settled.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
	}
	record, err := store.FindByOrder(context.Background(), "ORD-9", core.TransactionKindPayment)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != core.TransactionStatusSuccess {
		t.Fatalf("expected queued callbacks to settle at success; got %q", record.Status)
	}
}

type settledHook struct {
	done chan struct{}
}

func (h *settledHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *settledHook) OnSuccess(context.Context, core.JobWorkerEvent) { h.done <- struct{}{} }
func (h *settledHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (h *settledHook) OnRetry(context.Context, core.JobWorkerEvent)   {}
