package sqlstore

import (
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type transactionRecord struct {
	bun.BaseModel `bun:"table:bdpay_transactions,alias:bt"`

	ID               string          `bun:"id,pk"`
	OrderID          string          `bun:"order_id,notnull"`
	TransactionID    string          `bun:"transaction_id,nullzero"`
	Kind             string          `bun:"type,notnull"`
	Status           string          `bun:"status,notnull"`
	Amount           decimal.Decimal `bun:"amount,notnull"`
	Currency         string          `bun:"currency,notnull"`
	CustomerName     string          `bun:"customer_name,nullzero"`
	CustomerEmail    string          `bun:"customer_email,nullzero"`
	CustomerPhone    string          `bun:"customer_phone,nullzero"`
	RecipientName    string          `bun:"recipient_name,nullzero"`
	RecipientAccount string          `bun:"recipient_account,nullzero"`
	BankCode         string          `bun:"bank_code,nullzero"`
	Description      string          `bun:"description,nullzero"`
	RequestData      map[string]any  `bun:"request_data,type:jsonb,notnull"`
	ResponseData     map[string]any  `bun:"response_data,type:jsonb,notnull"`
	PaymentMethod    string          `bun:"payment_method,nullzero"`
	VANumber         string          `bun:"va_number,nullzero"`
	PaymentLink      string          `bun:"payment_link,nullzero"`
	ExpiredAt        *time.Time      `bun:"expired_at,nullzero"`
	PaidAt           *time.Time      `bun:"paid_at,nullzero"`
	CreatedAt        time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookClaimRecord struct {
	bun.BaseModel `bun:"table:bdpay_webhook_claims,alias:bwc"`

	ID             string     `bun:"id,pk"`
	ClaimKey       string     `bun:"claim_key,notnull"`
	ClaimID        string     `bun:"claim_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	RetryAt        *time.Time `bun:"retry_at,nullzero"`
	LastError      string     `bun:"last_error,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newTransactionRecord(tx core.Transaction) *transactionRecord {
	return &transactionRecord{
		ID:               tx.ID,
		OrderID:          tx.OrderID,
		TransactionID:    tx.TransactionID,
		Kind:             string(tx.Kind),
		Status:           string(tx.Status),
		Amount:           tx.Amount,
		Currency:         tx.Currency,
		CustomerName:     tx.CustomerName,
		CustomerEmail:    tx.CustomerEmail,
		CustomerPhone:    tx.CustomerPhone,
		RecipientName:    tx.RecipientName,
		RecipientAccount: tx.RecipientAccount,
		BankCode:         tx.BankCode,
		Description:      tx.Description,
		RequestData:      copyAnyMap(tx.RequestData),
		ResponseData:     copyAnyMap(tx.ResponseData),
		PaymentMethod:    tx.PaymentMethod,
		VANumber:         tx.VANumber,
		PaymentLink:      tx.PaymentLink,
		ExpiredAt:        cloneTime(tx.ExpiredAt),
		PaidAt:           cloneTime(tx.PaidAt),
		CreatedAt:        tx.CreatedAt.UTC(),
		UpdatedAt:        tx.UpdatedAt.UTC(),
	}
}

func (r *transactionRecord) toDomain() core.Transaction {
	if r == nil {
		return core.Transaction{}
	}
	return core.Transaction{
		ID:               r.ID,
		OrderID:          r.OrderID,
		TransactionID:    r.TransactionID,
		Kind:             core.TransactionKind(r.Kind),
		Status:           core.TransactionStatus(r.Status),
		Amount:           r.Amount,
		Currency:         r.Currency,
		CustomerName:     r.CustomerName,
		CustomerEmail:    r.CustomerEmail,
		CustomerPhone:    r.CustomerPhone,
		RecipientName:    r.RecipientName,
		RecipientAccount: r.RecipientAccount,
		BankCode:         r.BankCode,
		Description:      r.Description,
		RequestData:      copyAnyMap(r.RequestData),
		ResponseData:     copyAnyMap(r.ResponseData),
		PaymentMethod:    r.PaymentMethod,
		VANumber:         r.VANumber,
		PaymentLink:      r.PaymentLink,
		ExpiredAt:        cloneTime(r.ExpiredAt),
		PaidAt:           cloneTime(r.PaidAt),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	value := in.UTC()
	return &value
}
