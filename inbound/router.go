package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	PaymentWebhookPath      = "/bdpay/webhook/payment"
	DisbursementWebhookPath = "/bdpay/webhook/disbursement"

	DefaultMaxBodyBytes int64 = 1 << 20

	signatureFailedMessage = "Webhook signature verification failed"
	processingErrorMessage = "Webhook processing error"
)

// Dispatch is satisfied by *Dispatcher.
type Dispatch interface {
	Dispatch(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type RouterOption func(*routes)

func WithRouterLogger(logger core.Logger) RouterOption {
	return func(r *routes) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) RouterOption {
	return func(r *routes) {
		if limit > 0 {
			r.maxBody = limit
		}
	}
}

type routes struct {
	dispatcher Dispatch
	logger     core.Logger
	maxBody    int64
}

// NewRouter mounts the payment and disbursement callback endpoints.
func NewRouter(dispatcher Dispatch, opts ...RouterOption) chi.Router {
	rt := &routes{
		dispatcher: dispatcher,
		logger:     glog.Nop(),
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}

	r := chi.NewRouter()
	r.Post(PaymentWebhookPath, rt.handle(SurfacePayment))
	r.Post(DisbursementWebhookPath, rt.handle(SurfaceDisbursement))
	return r
}

func (rt *routes) handle(surface string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
					"status":  "error",
					"message": "Webhook payload too large",
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": "Unable to read webhook payload",
			})
			return
		}

		req := core.InboundRequest{
			ProviderID: DefaultProviderID,
			Surface:    surface,
			Headers:    flattenHeaders(r.Header),
			Body:       body,
			Metadata: map[string]any{
				"url":         r.URL.String(),
				"remote_addr": r.RemoteAddr,
			},
		}
		if rt.dispatcher == nil {
			rt.writeInternal(w, surface, inboundInternal("inbound: dispatcher is not configured", nil))
			return
		}

		result, err := rt.dispatcher.Dispatch(r.Context(), req)
		switch {
		case err == nil:
			rt.writeResult(w, result)
		case IsSignatureError(err):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": signatureFailedMessage,
				"error":   errorMessage(err),
			})
		case isCallerError(err):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": errorMessage(err),
			})
		default:
			rt.writeInternal(w, surface, err)
		}
	}
}

func (rt *routes) writeResult(w http.ResponseWriter, result core.InboundResult) {
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	body := result.Body
	if len(body) == 0 {
		body = map[string]any{"status": "success"}
	}
	writeJSON(w, status, body)
}

func (rt *routes) writeInternal(w http.ResponseWriter, surface string, err error) {
	rt.logger.Error("BDPay webhook processing error", "surface", surface, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"message": processingErrorMessage,
		"error":   "Internal server error",
	})
}

func isCallerError(err error) bool {
	mapped := core.MapError(err)
	return mapped != nil && mapped.Code >= 400 && mapped.Code < 500
}

func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
