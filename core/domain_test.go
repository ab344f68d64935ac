package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMapStatus_Table(t *testing.T) {
	cases := map[string]TransactionStatus{
		"success":    TransactionStatusSuccess,
		"PAID":       TransactionStatusSuccess,
		"Completed":  TransactionStatusSuccess,
		"pending":    TransactionStatusPending,
		"processing": TransactionStatusPending,
		"failed":     TransactionStatusFailed,
		"error":      TransactionStatusFailed,
		"rejected":   TransactionStatusFailed,
		"expired":    TransactionStatusExpired,
		"TIMEOUT":    TransactionStatusExpired,
		"cancelled":  TransactionStatusCancelled,
		"canceled":   TransactionStatusCancelled,
		"refunded":   TransactionStatusPending,
		"":           TransactionStatusPending,
	}
	for input, want := range cases {
		if got := MapStatus(input); got != want {
			t.Fatalf("MapStatus(%q) = %q; want %q", input, got, want)
		}
	}
}

func TestTransactionStatus_Terminal(t *testing.T) {
	if TransactionStatusPending.Terminal() {
		t.Fatalf("pending must not be terminal")
	}
	for _, status := range []TransactionStatus{TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusExpired, TransactionStatusCancelled} {
		if !status.Terminal() {
			t.Fatalf("expected %q to be terminal", status)
		}
	}
}

func TestParseTransactionKind(t *testing.T) {
	if kind, ok := ParseTransactionKind(" Payment "); !ok || kind != TransactionKindPayment {
		t.Fatalf("expected payment kind; got %q %v", kind, ok)
	}
	if _, ok := ParseTransactionKind("refund"); ok {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestTransaction_Helpers(t *testing.T) {
	tx := Transaction{
		Kind:   TransactionKindDisbursement,
		Status: TransactionStatusFailed,
		Amount: decimal.RequireFromString("1234567.5"),
	}
	if !tx.IsDisbursement() || tx.IsPayment() {
		t.Fatalf("unexpected kind helpers for %#v", tx)
	}
	if !tx.IsFailed() || tx.IsSuccessful() || tx.IsPending() {
		t.Fatalf("unexpected status helpers for %#v", tx)
	}
	if got := tx.FormattedAmount(); got != "IDR 1,234,567.50" {
		t.Fatalf("unexpected formatted amount %q", got)
	}
	if tx.StatusColor() != "red" {
		t.Fatalf("expected red badge; got %q", tx.StatusColor())
	}
	tx.Status = TransactionStatusExpired
	if tx.StatusColor() != "gray" {
		t.Fatalf("expected gray badge; got %q", tx.StatusColor())
	}
}

func TestTransaction_CloneDoesNotShareState(t *testing.T) {
	paidAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tx := Transaction{
		RequestData: map[string]any{"a": "1"},
		PaidAt:      &paidAt,
	}
	clone := tx.Clone()
	clone.RequestData["a"] = "2"
	*clone.PaidAt = paidAt.Add(time.Hour)
	if tx.RequestData["a"] != "1" {
		t.Fatalf("expected request data to be copied")
	}
	if !tx.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paid_at to be copied")
	}
}

func TestTransactionFilter_Matches(t *testing.T) {
	tx := Transaction{Kind: TransactionKindPayment, Status: TransactionStatusSuccess}
	if !PaymentsFilter().Matches(tx) || !PaymentsFilter().Successful().Matches(tx) {
		t.Fatalf("expected payment filters to match")
	}
	if PaymentsFilter().Pending().Matches(tx) || DisbursementsFilter().Matches(tx) {
		t.Fatalf("expected non-matching filters to reject")
	}
}

func TestAmountConversions(t *testing.T) {
	amount := decimal.RequireFromString("100000.25")
	if got := FormatAmount(amount, "IDR"); got != 10000025 {
		t.Fatalf("expected IDR amounts in hundredths; got %d", got)
	}
	if got := FormatAmount(amount, "USD"); got != 100000 {
		t.Fatalf("expected non-IDR amounts as whole units; got %d", got)
	}
	if got := ParseAmount(10000025, ""); !got.Equal(amount) {
		t.Fatalf("expected round trip; got %s", got)
	}
}

func TestParsePayloadAmount(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{in: json.Number("150000"), want: "150000"},
		{in: "99.999", want: "100"},
		{in: 12.5, want: "12.5"},
		{in: 7, want: "7"},
		{in: "abc", want: "0"},
		{in: nil, want: "0"},
		{in: true, want: "0"},
	}
	for _, tc := range cases {
		if got := ParsePayloadAmount(tc.in); got.String() != tc.want {
			t.Fatalf("ParsePayloadAmount(%#v) = %s; want %s", tc.in, got, tc.want)
		}
	}
}

func TestConfig_ActiveAndVerificationKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "PRODUCTION"
	cfg.API.Production = EnvironmentConfig{PublicKey: "merchant", PlatformPublicKey: "platform"}
	active := cfg.Active()
	if active.BaseURL != DefaultProductionBaseURL {
		t.Fatalf("expected production fallback base url; got %q", active.BaseURL)
	}
	if active.VerificationKey() != "platform" {
		t.Fatalf("expected platform key to win; got %q", active.VerificationKey())
	}
	active.PlatformPublicKey = " "
	if active.VerificationKey() != "merchant" {
		t.Fatalf("expected merchant public key fallback")
	}
}

func TestLogLevel_Normalization(t *testing.T) {
	if !LogLevel("warning").Valid() {
		t.Fatalf("expected warning alias to be accepted")
	}
	if LogLevel("verbose").Valid() {
		t.Fatalf("expected unknown level to be rejected")
	}
	if !LogLevelWarn.Enabled(LogLevelError) || LogLevelWarn.Enabled(LogLevelInfo) {
		t.Fatalf("unexpected level threshold behavior")
	}
}
