package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/security"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const AckStatusSuccess = "success"

// Recorder stores the outcome of one callback. ledger.Ledger implements it.
type Recorder interface {
	Reconcile(
		ctx context.Context,
		orderID string,
		kind core.TransactionKind,
		status core.TransactionStatus,
		payload map[string]any,
	) (core.Transaction, error)
}

// Ack is the outcome reported back to the gateway.
type Ack struct {
	Status      string
	Transaction core.Transaction
	// Stale is set when the transition policy refused the status. The
	// callback is still acknowledged so the gateway stops redelivering it.
	Stale bool
}

type Reconciler struct {
	recorder Recorder
	logger   core.Logger
	metrics  core.MetricsRecorder
}

type ReconcilerOption func(*Reconciler)

func WithLogger(logger core.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) ReconcilerOption {
	return func(r *Reconciler) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

func NewReconciler(recorder Recorder, opts ...ReconcilerOption) (*Reconciler, error) {
	if recorder == nil {
		return nil, fmt.Errorf("webhooks: ledger is required")
	}
	r := &Reconciler{
		recorder: recorder,
		logger:   glog.Nop(),
		metrics:  core.NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Process records one gateway callback for kind. A payload without an
// order_id is rejected before any record is created.
func (r *Reconciler) Process(ctx context.Context, kind core.TransactionKind, payload map[string]any) (ack Ack, err error) {
	startedAt := time.Now()
	label := callbackLabel(kind)
	defer func() {
		r.observe(ctx, kind, startedAt, err)
	}()

	if !kind.Valid() {
		return Ack{}, core.ValidationError(fmt.Sprintf("webhooks: unsupported transaction type %q", kind))
	}
	r.logger.Info("BDPay "+label+" Callback Received", flattenPayload(payload)...)

	orderID := payloadString(payload, "order_id")
	if orderID == "" {
		err = core.MissingOrderIDError(map[string]any{"type": string(kind)})
		r.logFailure(label, err, payload)
		return Ack{}, err
	}

	statusValue := payloadString(payload, "status")
	if statusValue == "" {
		statusValue = string(core.TransactionStatusPending)
	}
	status := core.MapStatus(statusValue)

	record, err := r.recorder.Reconcile(ctx, orderID, kind, status, payload)
	if err != nil {
		if errors.Is(err, core.ErrStaleTransition) {
			r.logger.Warn("BDPay "+label+" Callback Ignored",
				"order_id", orderID,
				"status", string(status),
				"current_status", string(record.Status),
			)
			return Ack{Status: AckStatusSuccess, Transaction: record, Stale: true}, nil
		}
		r.logFailure(label, err, payload)
		return Ack{}, normalizeError(err, orderID, kind)
	}
	return Ack{Status: AckStatusSuccess, Transaction: record}, nil
}

func (r *Reconciler) logFailure(label string, err error, payload map[string]any) {
	r.logger.Error("BDPay "+label+" Callback Error",
		"error", err.Error(),
		"data", core.RedactSensitiveMap(payload),
	)
}

func (r *Reconciler) observe(ctx context.Context, kind core.TransactionKind, startedAt time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"type": string(kind), "status": status}
	r.metrics.IncCounter(ctx, "bdpay.webhook.total", 1, tags)
	r.metrics.ObserveHistogram(ctx, "bdpay.webhook.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
}

// normalizeError keeps caller errors as they are and hides everything else
// behind an internal error.
func normalizeError(err error, orderID string, kind core.TransactionKind) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return err
		}
	}
	return core.InternalError(err, "webhooks: reconcile callback", map[string]any{
		"order_id": orderID,
		"type":     string(kind),
	})
}

// IsCallerError reports whether err should be answered with a 400 and its
// own message.
func IsCallerError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.Category == goerrors.CategoryBadInput || rich.Category == goerrors.CategoryValidation
}

// CallerMessage returns the message of a caller error.
func CallerMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}

func callbackLabel(kind core.TransactionKind) string {
	if kind == core.TransactionKindDisbursement {
		return "Disbursement"
	}
	return "Payment"
}

func payloadString(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(security.Stringify(value))
}

func flattenPayload(payload map[string]any) []any {
	if len(payload) == 0 {
		return nil
	}
	return []any{"data", core.RedactSensitiveMap(payload)}
}
