package command

import (
	"strings"

	"github.com/goliatone/go-bdpay/core"
)

const (
	TypeCreateVirtualAccount = "bdpay.command.virtual_account.create"
	TypeCreatePaymentLink    = "bdpay.command.payment_link.create"
	TypeCreateStaticVA       = "bdpay.command.static_va.create"
	TypeCreateDisbursement   = "bdpay.command.disbursement.create"
	TypeReconcileWebhook     = "bdpay.command.webhook.reconcile"
	TypeSyncStatus           = "bdpay.command.status.sync"
)

type CreateVirtualAccountMessage struct {
	Request core.PaymentRequest
}

func (CreateVirtualAccountMessage) Type() string { return TypeCreateVirtualAccount }

func (m CreateVirtualAccountMessage) Validate() error {
	return m.Request.Validate()
}

type CreatePaymentLinkMessage struct {
	Request core.PaymentRequest
}

func (CreatePaymentLinkMessage) Type() string { return TypeCreatePaymentLink }

func (m CreatePaymentLinkMessage) Validate() error {
	return m.Request.Validate()
}

type CreateStaticVAMessage struct {
	Request core.StaticVARequest
}

func (CreateStaticVAMessage) Type() string { return TypeCreateStaticVA }

func (m CreateStaticVAMessage) Validate() error {
	return m.Request.Validate()
}

type CreateDisbursementMessage struct {
	Request core.DisbursementRequest
}

func (CreateDisbursementMessage) Type() string { return TypeCreateDisbursement }

func (m CreateDisbursementMessage) Validate() error {
	return m.Request.Validate()
}

// ReconcileWebhookMessage carries one decoded callback body that has already
// passed signature verification.
type ReconcileWebhookMessage struct {
	Kind    core.TransactionKind
	Payload map[string]any
}

func (ReconcileWebhookMessage) Type() string { return TypeReconcileWebhook }

func (m ReconcileWebhookMessage) Validate() error {
	if !m.Kind.Valid() {
		return commandValidationError("kind", "must be payment or disbursement")
	}
	if m.Payload == nil {
		return commandValidationError("payload", "is required")
	}
	return nil
}

// SyncStatusMessage asks the gateway for the current status of one order and
// applies it to the ledger. It covers callbacks that never arrived.
type SyncStatusMessage struct {
	OrderID string
	Kind    core.TransactionKind
}

func (SyncStatusMessage) Type() string { return TypeSyncStatus }

func (m SyncStatusMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return commandValidationError("order_id", "is required")
	}
	if !m.Kind.Valid() {
		return commandValidationError("kind", "must be payment or disbursement")
	}
	return nil
}
