package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindPayment      TransactionKind = "payment"
	TransactionKindDisbursement TransactionKind = "disbursement"
)

func (k TransactionKind) Valid() bool {
	return k == TransactionKindPayment || k == TransactionKindDisbursement
}

// ParseTransactionKind accepts the kind names used in routes and storage.
func ParseTransactionKind(value string) (TransactionKind, bool) {
	kind := TransactionKind(strings.ToLower(strings.TrimSpace(value)))
	return kind, kind.Valid()
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusExpired   TransactionStatus = "expired"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether the status ends the payment workflow. Terminal
// statuses can still be overwritten by a later callback.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusExpired, TransactionStatusCancelled:
		return true
	default:
		return false
	}
}

// Transaction is one ledger row, unique per order and kind.
type Transaction struct {
	ID               string
	OrderID          string
	TransactionID    string
	Kind             TransactionKind
	Status           TransactionStatus
	Amount           decimal.Decimal
	Currency         string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	RecipientName    string
	RecipientAccount string
	BankCode         string
	Description      string
	RequestData      map[string]any
	ResponseData     map[string]any
	PaymentMethod    string
	VANumber         string
	PaymentLink      string
	ExpiredAt        *time.Time
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t Transaction) IsSuccessful() bool { return t.Status == TransactionStatusSuccess }

func (t Transaction) IsPending() bool { return t.Status == TransactionStatusPending }

func (t Transaction) IsFailed() bool { return t.Status == TransactionStatusFailed }

func (t Transaction) IsExpired() bool { return t.Status == TransactionStatusExpired }

func (t Transaction) IsCancelled() bool { return t.Status == TransactionStatusCancelled }

func (t Transaction) IsPayment() bool { return t.Kind == TransactionKindPayment }

func (t Transaction) IsDisbursement() bool { return t.Kind == TransactionKindDisbursement }

// FormattedAmount renders the amount as "IDR 100,000.00".
func (t Transaction) FormattedAmount() string {
	currency := strings.TrimSpace(t.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	return currency + " " + formatThousands(t.Amount)
}

// StatusColor is the badge color used by dashboards listing transactions.
func (t Transaction) StatusColor() string {
	switch t.Status {
	case TransactionStatusSuccess:
		return "green"
	case TransactionStatusPending:
		return "yellow"
	case TransactionStatusFailed:
		return "red"
	default:
		return "gray"
	}
}

// Clone returns a copy that does not share payload maps or timestamps.
func (t Transaction) Clone() Transaction {
	out := t
	out.RequestData = cloneFields(t.RequestData)
	out.ResponseData = cloneFields(t.ResponseData)
	if t.PaidAt != nil {
		paidAt := *t.PaidAt
		out.PaidAt = &paidAt
	}
	if t.ExpiredAt != nil {
		expiredAt := *t.ExpiredAt
		out.ExpiredAt = &expiredAt
	}
	return out
}

type TransactionFilter struct {
	Kind   TransactionKind
	Status TransactionStatus
	Limit  int
	Offset int
}

func PaymentsFilter() TransactionFilter {
	return TransactionFilter{Kind: TransactionKindPayment}
}

func DisbursementsFilter() TransactionFilter {
	return TransactionFilter{Kind: TransactionKindDisbursement}
}

func (f TransactionFilter) Pending() TransactionFilter {
	f.Status = TransactionStatusPending
	return f
}

func (f TransactionFilter) Successful() TransactionFilter {
	f.Status = TransactionStatusSuccess
	return f
}

func (f TransactionFilter) Failed() TransactionFilter {
	f.Status = TransactionStatusFailed
	return f
}

// Matches applies the filter to an in-memory record.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// TransactionStore persists ledger rows. Create must fail with a
// DuplicateRecordError when a row for the same order and kind exists, and
// lookups of missing rows fail with NotFoundError.
type TransactionStore interface {
	Create(ctx context.Context, tx Transaction) (Transaction, error)
	FindByOrder(ctx context.Context, orderID string, kind TransactionKind) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
	Update(ctx context.Context, tx Transaction) (Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)
}

// StoreProvider hands out the persistence backends a Client runs on.
type StoreProvider interface {
	TransactionStore() TransactionStore
	ClaimStore() IdempotencyClaimStore
}
