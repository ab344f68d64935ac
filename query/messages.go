package query

import (
	"strings"

	"github.com/goliatone/go-bdpay/core"
)

const (
	TypeGetPaymentStatus      = "bdpay.query.payment.status"
	TypeGetDisbursementStatus = "bdpay.query.disbursement.status"
	TypeGetBalance            = "bdpay.query.balance"
	TypeGetTransaction        = "bdpay.query.transaction.get"
	TypeListTransactions      = "bdpay.query.transaction.list"
)

type GetPaymentStatusMessage struct {
	OrderID string
}

func (GetPaymentStatusMessage) Type() string { return TypeGetPaymentStatus }

func (m GetPaymentStatusMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return queryValidationError("order_id", "is required")
	}
	return nil
}

type GetDisbursementStatusMessage struct {
	OrderID string
}

func (GetDisbursementStatusMessage) Type() string { return TypeGetDisbursementStatus }

func (m GetDisbursementStatusMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return queryValidationError("order_id", "is required")
	}
	return nil
}

type GetBalanceMessage struct{}

func (GetBalanceMessage) Type() string { return TypeGetBalance }

// GetTransactionMessage looks a ledger row up by ID, or by order and kind
// when ID is empty.
type GetTransactionMessage struct {
	ID      string
	OrderID string
	Kind    core.TransactionKind
}

func (GetTransactionMessage) Type() string { return TypeGetTransaction }

func (m GetTransactionMessage) Validate() error {
	if strings.TrimSpace(m.ID) != "" {
		return nil
	}
	if strings.TrimSpace(m.OrderID) == "" {
		return queryValidationError("order_id", "id or order_id is required")
	}
	if !m.Kind.Valid() {
		return queryValidationError("kind", "must be payment or disbursement")
	}
	return nil
}

type ListTransactionsMessage struct {
	Filter core.TransactionFilter
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "must be >= 0")
	}
	if m.Filter.Kind != "" && !m.Filter.Kind.Valid() {
		return queryValidationError("kind", "must be payment or disbursement")
	}
	return nil
}
