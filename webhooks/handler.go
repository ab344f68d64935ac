package webhooks

import (
	"context"
	"net/http"

	"github.com/goliatone/go-bdpay/core"
)

// Handler adapts a Reconciler to core.InboundHandler for one transaction
// kind. The surface name is the kind.
type Handler struct {
	kind       core.TransactionKind
	reconciler *Reconciler
}

func NewHandler(kind core.TransactionKind, reconciler *Reconciler) *Handler {
	return &Handler{kind: kind, reconciler: reconciler}
}

func (h *Handler) Surface() string {
	return string(h.kind)
}

// Handle decodes the callback body and reconciles it. Caller errors are
// answered in the result body; other failures are returned as errors.
func (h *Handler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	payload, err := core.DecodePayload(req.Body)
	if err != nil {
		return ErrorResult("Invalid JSON payload"), nil
	}
	ack, err := h.reconciler.Process(ctx, h.kind, payload)
	if err != nil {
		if IsCallerError(err) {
			return ErrorResult(CallerMessage(err)), nil
		}
		return core.InboundResult{}, err
	}
	result := SuccessResult()
	result.Metadata = map[string]any{
		"order_id":       ack.Transaction.OrderID,
		"transaction_id": ack.Transaction.ID,
		"status":         string(ack.Transaction.Status),
		"stale":          ack.Stale,
	}
	return result, nil
}

// SuccessResult is the acknowledgement body the gateway expects.
func SuccessResult() core.InboundResult {
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Body:       map[string]any{"status": AckStatusSuccess},
	}
}

// ErrorResult answers a malformed callback. It is marked accepted so the
// same body is not retried.
func ErrorResult(message string) core.InboundResult {
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusBadRequest,
		Body:       map[string]any{"status": "error", "message": message},
	}
}
