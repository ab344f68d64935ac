package inbound

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bdpay/core"
)

const (
	SurfacePayment      = string(core.TransactionKindPayment)
	SurfaceDisbursement = string(core.TransactionKindDisbursement)

	DefaultProviderID = "bdpay"
	DefaultKeyTTL     = 10 * time.Minute
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type IdempotencyKeyExtractor func(req core.InboundRequest) (string, error)

// Dispatcher routes verified callbacks to the handler registered for their
// surface. With a Store set, byte-identical deliveries inside KeyTTL are
// handled once; with a nil Store every verified delivery is handled.
type Dispatcher struct {
	Verifier   Verifier
	Store      core.IdempotencyClaimStore
	ExtractKey IdempotencyKeyExtractor
	KeyTTL     time.Duration

	// DeadLetters, when set, receives deliveries whose handling failed.
	DeadLetters core.DeadLetterSink

	mu       sync.RWMutex
	handlers map[string]core.InboundHandler
}

func NewDispatcher(verifier Verifier, store core.IdempotencyClaimStore) *Dispatcher {
	return &Dispatcher{
		Verifier:   verifier,
		Store:      store,
		ExtractKey: DefaultIdempotencyKeyExtractor,
		KeyTTL:     DefaultKeyTTL,
		handlers:   map[string]core.InboundHandler{},
	}
}

func (d *Dispatcher) Register(handler core.InboundHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	surface := normalizeSurface(handler.Surface())
	if !isSupportedSurface(surface) {
		return inboundBadInput(fmt.Sprintf("inbound: unsupported surface %q", surface), map[string]any{"surface": surface})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[string]core.InboundHandler{}
	}
	if _, exists := d.handlers[surface]; exists {
		return failConflict.new(
			fmt.Sprintf("inbound: handler already registered for surface %q", surface),
			map[string]any{"surface": surface},
		)
	}
	d.handlers[surface] = handler
	return nil
}

// delivery tracks one callback through claim and settlement.
type delivery struct {
	req     core.InboundRequest
	key     string
	claimID string
}

func (dl *delivery) fields(extra ...any) map[string]any {
	out := map[string]any{"provider_id": dl.req.ProviderID, "surface": dl.req.Surface}
	for i := 0; i+1 < len(extra); i += 2 {
		out[fmt.Sprint(extra[i])] = extra[i+1]
	}
	return out
}

// Dispatch verifies, claims and handles one callback. Verification errors
// are returned as produced by the Verifier so their message reaches the
// caller unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if d == nil {
		return core.InboundResult{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		req.ProviderID = DefaultProviderID
	}
	req.Surface = normalizeSurface(req.Surface)
	dl := &delivery{req: req}
	if !isSupportedSurface(req.Surface) {
		return core.InboundResult{}, inboundBadInput(fmt.Sprintf("inbound: unsupported surface %q", req.Surface), dl.fields())
	}

	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
				StatusCode: http.StatusUnauthorized,
				Metadata:   dl.fields("rejected", true),
			}, err
		}
	}

	handler := d.handlerFor(req.Surface)
	if handler == nil {
		return core.InboundResult{}, failNotFound.new(
			fmt.Sprintf("inbound: no handler registered for surface %q", req.Surface),
			dl.fields(),
		)
	}

	fresh, err := d.claim(ctx, dl)
	if err != nil {
		return core.InboundResult{}, err
	}
	if !fresh {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   dl.fields("deduped", true),
		}, nil
	}

	result, err := handler.Handle(ctx, req)
	switch {
	case err != nil:
		cause := failOperation.wrap(err, "inbound: handler execution failed", dl.fields())
		return core.InboundResult{}, d.fail(ctx, dl, cause)
	case !result.Accepted || result.StatusCode >= http.StatusInternalServerError:
		cause := failOperation.new(
			fmt.Sprintf("inbound: handler returned retryable status %d", result.StatusCode),
			dl.fields("status_code", result.StatusCode),
		)
		return result, d.fail(ctx, dl, cause)
	}

	if d.Store != nil && dl.claimID != "" {
		if err := d.Store.Complete(ctx, dl.claimID); err != nil {
			return core.InboundResult{}, failOperation.wrap(err, "inbound: complete idempotency claim", dl.fields("claim_id", dl.claimID))
		}
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["provider_id"] = req.ProviderID
	result.Metadata["surface"] = req.Surface
	return result, nil
}

// claim reserves the delivery's idempotency key. It reports false when
// another delivery holds or already completed the key. Without a Store
// every delivery is fresh.
func (d *Dispatcher) claim(ctx context.Context, dl *delivery) (bool, error) {
	if d.Store == nil {
		return true, nil
	}
	extract := d.ExtractKey
	if extract == nil {
		extract = DefaultIdempotencyKeyExtractor
	}
	key, err := extract(dl.req)
	if err != nil {
		return false, failBadInput.wrap(err, "inbound: resolve idempotency key", dl.fields())
	}
	dl.key = key
	claimID, accepted, err := d.Store.Claim(ctx, dl.req.ProviderID+":"+dl.req.Surface+":"+key, d.keyTTL())
	if err != nil {
		return false, failOperation.wrap(err, "inbound: idempotency claim failed", dl.fields("idempotency", key))
	}
	dl.claimID = claimID
	return accepted, nil
}

// fail dead-letters the delivery and releases its claim for retry. Errors
// from either step are joined to cause.
func (d *Dispatcher) fail(ctx context.Context, dl *delivery, cause error) error {
	errs := []error{cause}
	if d.DeadLetters != nil {
		letter := core.DeadLetter{
			ProviderID:     dl.req.ProviderID,
			Surface:        dl.req.Surface,
			IdempotencyKey: dl.key,
			Headers:        dl.req.Headers,
			Body:           dl.req.Body,
			Error:          cause.Error(),
			FailedAt:       time.Now().UTC(),
		}
		if err := d.DeadLetters.Send(ctx, letter); err != nil {
			errs = append(errs, failOperation.wrap(err, "inbound: record dead letter", dl.fields()))
		}
	}
	if d.Store != nil && dl.claimID != "" {
		if err := d.Store.Fail(ctx, dl.claimID, cause, time.Time{}); err != nil {
			errs = append(errs, failOperation.wrap(err, "inbound: mark idempotency claim failed", dl.fields("claim_id", dl.claimID)))
		}
	}
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// DefaultIdempotencyKeyExtractor prefers an explicit delivery id and falls
// back to a digest of the raw body, so byte-identical retries share a key.
func DefaultIdempotencyKeyExtractor(req core.InboundRequest) (string, error) {
	if req.Metadata != nil {
		if value := trimAny(req.Metadata["idempotency_key"]); value != "" {
			return value, nil
		}
		if value := trimAny(req.Metadata["delivery_id"]); value != "" {
			return value, nil
		}
	}
	if value := headerValue(req.Headers, "idempotency-key"); value != "" {
		return value, nil
	}
	if value := headerValue(req.Headers, "x-idempotency-key"); value != "" {
		return value, nil
	}
	if len(req.Body) == 0 {
		return "", inboundBadInput("inbound: idempotency key is required", map[string]any{
			"provider_id": req.ProviderID,
			"surface":     req.Surface,
		})
	}
	sum := sha256.Sum256(req.Body)
	return hex.EncodeToString(sum[:]), nil
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return DefaultKeyTTL
}

func (d *Dispatcher) handlerFor(surface string) core.InboundHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeSurface(surface)]
}

func normalizeSurface(surface string) string {
	return strings.TrimSpace(strings.ToLower(surface))
}

func isSupportedSurface(surface string) bool {
	switch normalizeSurface(surface) {
	case SurfacePayment, SurfaceDisbursement:
		return true
	default:
		return false
	}
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
