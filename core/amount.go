package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "IDR"

var hundred = decimal.NewFromInt(100)

// FormatAmount converts a major-unit amount into the integer form the
// gateway expects. IDR amounts are sent in hundredths.
func FormatAmount(amount decimal.Decimal, currency string) int64 {
	if isIDR(currency) {
		return amount.Mul(hundred).IntPart()
	}
	return amount.IntPart()
}

// ParseAmount reverses FormatAmount.
func ParseAmount(amount int64, currency string) decimal.Decimal {
	value := decimal.NewFromInt(amount)
	if isIDR(currency) {
		return value.Div(hundred)
	}
	return value
}

// ParsePayloadAmount reads an amount from a decoded payload value. Values
// that are not numeric yield zero.
func ParsePayloadAmount(value any) decimal.Decimal {
	var parsed decimal.Decimal
	switch v := value.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		parsed = v
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		parsed = d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		parsed = d
	case float64:
		parsed = decimal.NewFromFloat(v)
	case float32:
		parsed = decimal.NewFromFloat32(v)
	case int:
		parsed = decimal.NewFromInt(int64(v))
	case int32:
		parsed = decimal.NewFromInt32(v)
	case int64:
		parsed = decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
	return parsed.Round(2)
}

// AmountString renders an amount the way request payloads carry it.
func AmountString(amount decimal.Decimal) string {
	return amount.String()
}

func isIDR(currency string) bool {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	return currency == "" || currency == DefaultCurrency
}

func formatThousands(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, fraction, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + fraction
}
