package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bdpay/core"
	glog "github.com/goliatone/go-logger/glog"
)

const JobIDReconcile = "bdpay.webhook.reconcile"

const (
	paramType    = "type"
	paramPayload = "payload"
)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// ReconcileMessage builds the job that reconciles one callback body. The
// idempotency key is derived from the raw body and tracks retry attempts;
// a redelivered body is queued and applied again.
func ReconcileMessage(kind core.TransactionKind, payload map[string]any, body []byte) *core.JobExecutionMessage {
	sum := sha256.Sum256(body)
	return &core.JobExecutionMessage{
		JobID:      JobIDReconcile,
		ScriptPath: JobIDReconcile,
		Parameters: map[string]any{
			paramType:    string(kind),
			paramPayload: core.CloneFields(payload),
		},
		IdempotencyKey: string(kind) + ":" + hex.EncodeToString(sum[:]),
	}
}

// AsyncHandler acknowledges callbacks once they are queued. Payloads
// without an order_id are still rejected synchronously.
type AsyncHandler struct {
	kind     core.TransactionKind
	enqueuer core.JobEnqueuer
}

func NewAsyncHandler(kind core.TransactionKind, enqueuer core.JobEnqueuer) *AsyncHandler {
	return &AsyncHandler{kind: kind, enqueuer: enqueuer}
}

func (h *AsyncHandler) Surface() string {
	return string(h.kind)
}

func (h *AsyncHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h.enqueuer == nil {
		return core.InboundResult{}, core.ConfigurationError("webhooks: job enqueuer is not configured", nil)
	}
	payload, err := core.DecodePayload(req.Body)
	if err != nil {
		return ErrorResult("Invalid JSON payload"), nil
	}
	if payloadString(payload, "order_id") == "" {
		return ErrorResult(core.MissingOrderIDMessage), nil
	}
	msg := ReconcileMessage(h.kind, payload, req.Body)
	if err := h.enqueuer.Enqueue(ctx, msg); err != nil {
		return core.InboundResult{}, core.InternalError(err, "webhooks: enqueue reconcile job", map[string]any{
			"type":            string(h.kind),
			"idempotency_key": msg.IdempotencyKey,
		})
	}
	result := SuccessResult()
	result.Metadata = map[string]any{"queued": true, "idempotency_key": msg.IdempotencyKey}
	return result, nil
}

// attemptNacker is implemented by deliveries that bound retries by attempt.
type attemptNacker interface {
	NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
}

// JobRunner drains reconcile jobs. Failed jobs are nacked with an
// exponential delay until MaxAttempts, then dead-lettered.
type JobRunner struct {
	Dequeuer    core.JobDequeuer
	Reconciler  *Reconciler
	RetryPolicy RetryPolicy
	MaxAttempts int
	IdleDelay   time.Duration
	Hooks       []core.JobWorkerHook
	Logger      core.Logger
	Now         func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewJobRunner(dequeuer core.JobDequeuer, reconciler *Reconciler) *JobRunner {
	return &JobRunner{
		Dequeuer:    dequeuer,
		Reconciler:  reconciler,
		RetryPolicy: ExponentialRetryPolicy{},
		MaxAttempts: 8,
		IdleDelay:   time.Second,
		Logger:      glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
		attempts: map[string]int{},
	}
}

// Run processes jobs until ctx is done.
func (r *JobRunner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.logger().Warn("webhooks job runner iteration failed", "error", err.Error())
			if errors.Is(err, errDequeue) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(r.idleDelay()):
				}
			}
		}
	}
}

var errDequeue = errors.New("webhooks: dequeue failed")

// RunOnce dequeues and settles a single job.
func (r *JobRunner) RunOnce(ctx context.Context) error {
	if r == nil || r.Dequeuer == nil || r.Reconciler == nil {
		return fmt.Errorf("webhooks: job runner requires dequeuer and reconciler")
	}
	delivery, err := r.Dequeuer.Dequeue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Join(errDequeue, err)
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	kind, payload, err := decodeReconcileMessage(msg)
	if err != nil {
		nackErr := r.nack(ctx, delivery, core.JobNackOptions{DeadLetter: true, Reason: err.Error()}, r.maxAttempts())
		return errors.Join(err, nackErr)
	}

	key := msg.IdempotencyKey
	attempt := r.nextAttempt(key)
	startedAt := r.now()
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	r.emit(ctx, event, core.JobWorkerHook.OnStart)

	_, procErr := r.Reconciler.Process(ctx, kind, payload)
	event.Duration = r.now().Sub(startedAt)
	if procErr == nil {
		r.clearAttempts(key)
		if err := delivery.Ack(ctx); err != nil {
			return fmt.Errorf("webhooks: ack reconcile job: %w", err)
		}
		r.emit(ctx, event, core.JobWorkerHook.OnSuccess)
		return nil
	}

	event.Err = procErr
	if IsCallerError(procErr) || attempt >= r.maxAttempts() {
		r.clearAttempts(key)
		nackErr := r.nack(ctx, delivery, core.JobNackOptions{DeadLetter: true, Reason: procErr.Error()}, attempt)
		r.emit(ctx, event, core.JobWorkerHook.OnFailure)
		return errors.Join(procErr, nackErr)
	}

	delay := r.retryPolicy().NextDelay(attempt)
	event.Delay = delay
	nackErr := r.nack(ctx, delivery, core.JobNackOptions{Delay: delay, Requeue: true, Reason: procErr.Error()}, attempt)
	r.emit(ctx, event, core.JobWorkerHook.OnRetry)
	return errors.Join(procErr, nackErr)
}

func decodeReconcileMessage(msg *core.JobExecutionMessage) (core.TransactionKind, map[string]any, error) {
	if msg == nil {
		return "", nil, fmt.Errorf("webhooks: job message is empty")
	}
	if strings.TrimSpace(msg.JobID) != JobIDReconcile {
		return "", nil, fmt.Errorf("webhooks: unsupported job %q", msg.JobID)
	}
	rawKind, _ := msg.Parameters[paramType].(string)
	kind, ok := core.ParseTransactionKind(rawKind)
	if !ok {
		return "", nil, fmt.Errorf("webhooks: unsupported transaction type %q", rawKind)
	}
	payload, ok := msg.Parameters[paramPayload].(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("webhooks: job payload is missing")
	}
	return kind, payload, nil
}

func (r *JobRunner) nack(ctx context.Context, delivery core.JobDelivery, opts core.JobNackOptions, attempt int) error {
	if bounded, ok := delivery.(attemptNacker); ok {
		return bounded.NackForAttempt(ctx, opts, attempt)
	}
	return delivery.Nack(ctx, opts)
}

func (r *JobRunner) emit(ctx context.Context, event core.JobWorkerEvent, call func(core.JobWorkerHook, context.Context, core.JobWorkerEvent)) {
	for _, hook := range r.Hooks {
		if hook != nil {
			call(hook, ctx, event)
		}
	}
}

func (r *JobRunner) nextAttempt(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts == nil {
		r.attempts = map[string]int{}
	}
	r.attempts[key]++
	return r.attempts[key]
}

func (r *JobRunner) clearAttempts(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, key)
}

func (r *JobRunner) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *JobRunner) retryPolicy() RetryPolicy {
	if r != nil && r.RetryPolicy != nil {
		return r.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (r *JobRunner) maxAttempts() int {
	if r != nil && r.MaxAttempts > 0 {
		return r.MaxAttempts
	}
	return 8
}

func (r *JobRunner) idleDelay() time.Duration {
	if r != nil && r.IdleDelay > 0 {
		return r.IdleDelay
	}
	return time.Second
}

func (r *JobRunner) logger() core.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return glog.Nop()
}
