package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// DisbursementRequest describes a payout to a bank account.
type DisbursementRequest struct {
	OrderID          string
	Amount           decimal.Decimal
	RecipientName    string
	RecipientAccount string
	BankCode         string
	Description      string
	CallbackURL      string
	FeeType          string
}

func (r DisbursementRequest) Validate() error {
	return requireFields([]requiredField{
		{name: "amount", present: !r.Amount.IsZero()},
		{name: "order_id", present: strings.TrimSpace(r.OrderID) != ""},
		{name: "recipient_name", present: strings.TrimSpace(r.RecipientName) != ""},
		{name: "recipient_account", present: strings.TrimSpace(r.RecipientAccount) != ""},
		{name: "bank_code", present: strings.TrimSpace(r.BankCode) != ""},
	})
}

func (c *Client) CreateDisbursement(ctx context.Context, req DisbursementRequest) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"merchantCode": c.MerchantCode(),
		"orderNum":     req.OrderID,
		"money":        AmountString(req.Amount),
		"description":  firstNonEmpty(req.Description, "Disbursement"),
		"name":         req.RecipientName,
		"bankCode":     req.BankCode,
		"number":       req.RecipientAccount,
		"notifyUrl":    firstNonEmpty(req.CallbackURL, c.config.Webhook.DisbursementCallbackURL),
		"feeType":      firstNonEmpty(req.FeeType, c.config.Defaults.FeeType, "0"),
		"dateTime":     c.timestamp().Format(isoDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointDisbursement, payload)
}

func (c *Client) GetDisbursementStatus(ctx context.Context, orderID string) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, requireFields([]requiredField{{name: "order_id"}})
	}
	payload := map[string]any{
		"merchantCode": c.MerchantCode(),
		"orderNum":     orderID,
		"dateTime":     c.timestamp().Format(isoDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointDisbursementState, payload)
}

// GetBalance returns the merchant account balance.
func (c *Client) GetBalance(ctx context.Context) (map[string]any, error) {
	payload := map[string]any{
		"merchantCode": c.MerchantCode(),
		"dateTime":     c.timestamp().Format(isoDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointBalance, payload)
}
