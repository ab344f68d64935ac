package command

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/webhooks"
	gocmd "github.com/goliatone/go-command"
)

// PendingRecorder stores a pending ledger row for an order the gateway has
// accepted. ledger.Ledger implements it.
type PendingRecorder interface {
	FindOrCreate(ctx context.Context, orderID string, kind core.TransactionKind, payload map[string]any) (core.Transaction, error)
}

// CallbackProcessor is implemented by webhooks.Reconciler.
type CallbackProcessor interface {
	Process(ctx context.Context, kind core.TransactionKind, payload map[string]any) (webhooks.Ack, error)
}

type CreateVirtualAccountCommand struct {
	gateway  core.Gateway
	recorder PendingRecorder
}

// NewCreateVirtualAccountCommand builds the command. recorder may be nil, in
// which case nothing is written to the ledger.
func NewCreateVirtualAccountCommand(gateway core.Gateway, recorder PendingRecorder) *CreateVirtualAccountCommand {
	return &CreateVirtualAccountCommand{gateway: gateway, recorder: recorder}
}

func (c *CreateVirtualAccountCommand) Execute(ctx context.Context, msg CreateVirtualAccountMessage) error {
	if c == nil || c.gateway == nil {
		return commandDependencyError("command: virtual account gateway is required")
	}
	out, err := c.gateway.CreateVA(ctx, msg.Request)
	if err != nil {
		return err
	}
	if err := recordPending(ctx, c.recorder, msg.Request.OrderID, core.TransactionKindPayment, paymentFields(msg.Request)); err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreatePaymentLinkCommand struct {
	gateway  core.Gateway
	recorder PendingRecorder
}

func NewCreatePaymentLinkCommand(gateway core.Gateway, recorder PendingRecorder) *CreatePaymentLinkCommand {
	return &CreatePaymentLinkCommand{gateway: gateway, recorder: recorder}
}

func (c *CreatePaymentLinkCommand) Execute(ctx context.Context, msg CreatePaymentLinkMessage) error {
	if c == nil || c.gateway == nil {
		return commandDependencyError("command: payment link gateway is required")
	}
	out, err := c.gateway.CreatePaymentLink(ctx, msg.Request)
	if err != nil {
		return err
	}
	if err := recordPending(ctx, c.recorder, msg.Request.OrderID, core.TransactionKindPayment, paymentFields(msg.Request)); err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateStaticVACommand struct {
	gateway core.Gateway
}

func NewCreateStaticVACommand(gateway core.Gateway) *CreateStaticVACommand {
	return &CreateStaticVACommand{gateway: gateway}
}

func (c *CreateStaticVACommand) Execute(ctx context.Context, msg CreateStaticVAMessage) error {
	if c == nil || c.gateway == nil {
		return commandDependencyError("command: static virtual account gateway is required")
	}
	out, err := c.gateway.CreateStaticVA(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateDisbursementCommand struct {
	gateway  core.Gateway
	recorder PendingRecorder
}

func NewCreateDisbursementCommand(gateway core.Gateway, recorder PendingRecorder) *CreateDisbursementCommand {
	return &CreateDisbursementCommand{gateway: gateway, recorder: recorder}
}

func (c *CreateDisbursementCommand) Execute(ctx context.Context, msg CreateDisbursementMessage) error {
	if c == nil || c.gateway == nil {
		return commandDependencyError("command: disbursement gateway is required")
	}
	out, err := c.gateway.CreateDisbursement(ctx, msg.Request)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"order_id":          strings.TrimSpace(msg.Request.OrderID),
		"amount":            msg.Request.Amount.String(),
		"recipient_name":    msg.Request.RecipientName,
		"recipient_account": msg.Request.RecipientAccount,
		"bank_code":         msg.Request.BankCode,
		"description":       msg.Request.Description,
	}
	if err := recordPending(ctx, c.recorder, msg.Request.OrderID, core.TransactionKindDisbursement, fields); err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReconcileWebhookCommand struct {
	processor CallbackProcessor
}

func NewReconcileWebhookCommand(processor CallbackProcessor) *ReconcileWebhookCommand {
	return &ReconcileWebhookCommand{processor: processor}
}

func (c *ReconcileWebhookCommand) Execute(ctx context.Context, msg ReconcileWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: webhook reconciler is required")
	}
	ack, err := c.processor.Process(ctx, msg.Kind, msg.Payload)
	if err != nil {
		return err
	}
	storeResult(ctx, ack)
	return nil
}

// SyncStatusCommand polls the gateway for one order and reconciles the
// reported status into the ledger.
type SyncStatusCommand struct {
	gateway  core.Gateway
	recorder webhooks.Recorder
}

func NewSyncStatusCommand(gateway core.Gateway, recorder webhooks.Recorder) *SyncStatusCommand {
	return &SyncStatusCommand{gateway: gateway, recorder: recorder}
}

func (c *SyncStatusCommand) Execute(ctx context.Context, msg SyncStatusMessage) error {
	if c == nil || c.gateway == nil {
		return commandDependencyError("command: status sync gateway is required")
	}
	if c.recorder == nil {
		return commandDependencyError("command: status sync recorder is required")
	}
	orderID := strings.TrimSpace(msg.OrderID)

	var (
		out map[string]any
		err error
	)
	if msg.Kind == core.TransactionKindDisbursement {
		out, err = c.gateway.GetDisbursementStatus(ctx, orderID)
	} else {
		out, err = c.gateway.GetPaymentStatus(ctx, orderID)
	}
	if err != nil {
		return err
	}

	providerStatus := responseStatus(out)
	if providerStatus == "" {
		return core.ProviderError(nil, "gateway status response carries no status", 0, "", out)
	}
	payload := core.CloneFields(out)
	payload["order_id"] = orderID

	record, err := c.recorder.Reconcile(ctx, orderID, msg.Kind, core.MapStatus(providerStatus), payload)
	if err != nil {
		if errors.Is(err, core.ErrStaleTransition) {
			return nil
		}
		return err
	}
	storeResult(ctx, record)
	return nil
}

func recordPending(
	ctx context.Context,
	recorder PendingRecorder,
	orderID string,
	kind core.TransactionKind,
	fields map[string]any,
) error {
	if recorder == nil {
		return nil
	}
	_, err := recorder.FindOrCreate(ctx, strings.TrimSpace(orderID), kind, fields)
	return err
}

func paymentFields(req core.PaymentRequest) map[string]any {
	return map[string]any{
		"order_id":       strings.TrimSpace(req.OrderID),
		"amount":         req.Amount.String(),
		"customer_name":  req.CustomerName,
		"customer_email": req.CustomerEmail,
		"customer_phone": req.CustomerPhone,
		"bank_code":      req.BankCode,
		"description":    req.Description,
	}
}

// responseStatus reads status from the top level or from a nested data
// object.
func responseStatus(out map[string]any) string {
	if value, ok := out["status"].(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if data, ok := out["data"].(map[string]any); ok {
		if value, ok := data["status"].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
