package core

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

const (
	EndpointCreateVA          = "/gateway/pay"
	EndpointPaymentLink       = "/gateway/prepaidOrder"
	EndpointStaticVA          = "/gateway/staticva/create"
	EndpointPaymentStatus     = "/gateway/pay/status"
	EndpointDisbursement      = "/gateway/cash"
	EndpointDisbursementState = "/gateway/cash/status"
	EndpointBalance           = "/gateway/account"
)

const (
	isoDateTimeLayout     = "2006-01-02T15:04:05-07:00"
	compactDateTimeLayout = "20060102150405"
	paymentLinkFieldLimit = 32
)

// PaymentRequest describes a virtual account or payment link order.
type PaymentRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	BankCode      string
	PaymentMethod string
	Description   string
	CallbackURL   string
	ExpiryPeriod  string
}

func (r PaymentRequest) Validate() error {
	return requireFields([]requiredField{
		{name: "amount", present: !r.Amount.IsZero()},
		{name: "order_id", present: strings.TrimSpace(r.OrderID) != ""},
		{name: "customer_name", present: strings.TrimSpace(r.CustomerName) != ""},
		{name: "customer_email", present: strings.TrimSpace(r.CustomerEmail) != ""},
		{name: "customer_phone", present: strings.TrimSpace(r.CustomerPhone) != ""},
	})
}

// StaticVARequest describes a reusable virtual account for one customer.
type StaticVARequest struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	BankCode      string
	Description   string
	CallbackURL   string
}

func (r StaticVARequest) Validate() error {
	return requireFields([]requiredField{
		{name: "customer_name", present: strings.TrimSpace(r.CustomerName) != ""},
		{name: "customer_email", present: strings.TrimSpace(r.CustomerEmail) != ""},
		{name: "customer_phone", present: strings.TrimSpace(r.CustomerPhone) != ""},
	})
}

// CreateVA opens a dynamic virtual account for an order.
func (c *Client) CreateVA(ctx context.Context, req PaymentRequest) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"merchantCode":  c.MerchantCode(),
		"method":        firstNonEmpty(req.BankCode, c.config.Defaults.PaymentMethod, "VA_BCA"),
		"orderNum":      req.OrderID,
		"payMoney":      AmountString(req.Amount),
		"productDetail": firstNonEmpty(req.Description, "Payment"),
		"name":          req.CustomerName,
		"email":         req.CustomerEmail,
		"phone":         req.CustomerPhone,
		"notifyUrl":     firstNonEmpty(req.CallbackURL, c.config.Webhook.PaymentCallbackURL),
		"expiryPeriod":  firstNonEmpty(req.ExpiryPeriod, c.config.Defaults.ExpiryPeriod, "30"),
		"dateTime":      c.timestamp().Format(isoDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointCreateVA, payload)
}

// CreatePaymentLink creates a hosted payment page. Product detail and
// customer name are cut to the gateway field limit.
func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentRequest) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var method any
	if strings.TrimSpace(req.PaymentMethod) != "" {
		method = req.PaymentMethod
	}
	payload := map[string]any{
		"merchantCode":  c.MerchantCode(),
		"method":        method,
		"orderNum":      req.OrderID,
		"payMoney":      AmountString(req.Amount),
		"productDetail": truncateRunes(firstNonEmpty(req.Description, "Payment"), paymentLinkFieldLimit),
		"name":          truncateRunes(req.CustomerName, paymentLinkFieldLimit),
		"email":         req.CustomerEmail,
		"phone":         req.CustomerPhone,
		"notifyUrl":     firstNonEmpty(req.CallbackURL, c.config.Webhook.PaymentCallbackURL),
		"expiryPeriod":  firstNonEmpty(req.ExpiryPeriod, c.config.Defaults.ExpiryPeriod, "30"),
		"dateTime":      c.timestamp().Format(compactDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointPaymentLink, payload)
}

// CreateStaticVA opens a virtual account that is not bound to one order.
func (c *Client) CreateStaticVA(ctx context.Context, req StaticVARequest) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"merchantCode":  c.MerchantCode(),
		"method":        firstNonEmpty(req.BankCode, c.config.Defaults.PaymentMethod, "VA_BCA"),
		"name":          req.CustomerName,
		"email":         req.CustomerEmail,
		"phone":         req.CustomerPhone,
		"productDetail": firstNonEmpty(req.Description, "Static VA"),
		"notifyUrl":     firstNonEmpty(req.CallbackURL, c.config.Webhook.PaymentCallbackURL),
		"dateTime":      c.timestamp().Format(isoDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointStaticVA, payload)
}

func (c *Client) GetPaymentStatus(ctx context.Context, orderID string) (map[string]any, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, requireFields([]requiredField{{name: "order_id"}})
	}
	payload := map[string]any{
		"merchantCode": c.MerchantCode(),
		"queryType":    "ORDER_QUERY",
		"orderNum":     orderID,
		"dateTime":     c.timestamp().Format(isoDateTimeLayout),
	}
	return c.Request(ctx, "POST", EndpointPaymentStatus, payload)
}

type requiredField struct {
	name    string
	present bool
}

func requireFields(fields []requiredField) error {
	missing := make([]string, 0, len(fields))
	fieldErrors := make([]goerrors.FieldError, 0, len(fields))
	for _, field := range fields {
		if field.present {
			continue
		}
		missing = append(missing, field.name)
		fieldErrors = append(fieldErrors, goerrors.FieldError{Field: field.name, Message: "is required"})
	}
	if len(missing) == 0 {
		return nil
	}
	return ValidationError("Missing required fields: "+strings.Join(missing, ", "), fieldErrors...)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
