package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-bdpay/security"
	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_AssignsStableCodes(t *testing.T) {
	mapped := serviceErrorMapper(stderrors.New("core: transport not configured"))
	if mapped.TextCode != ErrorConfiguration {
		t.Fatalf("expected configuration text code, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", mapped.Code)
	}

	mapped = serviceErrorMapper(stderrors.New("core: field is required"))
	if mapped.TextCode != ErrorBadInput || mapped.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input mapping, got %q %d", mapped.TextCode, mapped.Code)
	}

	mapped = serviceErrorMapper(stderrors.Join(security.ErrInvalidKeyFormat, stderrors.New("pem decode")))
	if mapped.TextCode != ErrorInvalidKeyFormat {
		t.Fatalf("expected invalid key text code, got %q", mapped.TextCode)
	}

	if serviceErrorMapper(nil) != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}

func TestSentinelErrors_MatchWithErrorsIs(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
		textCode string
		status   int
	}{
		{name: "missing order", err: MissingOrderIDError(nil), sentinel: ErrMissingOrderID, textCode: ErrorMissingOrderID, status: http.StatusBadRequest},
		{name: "duplicate", err: DuplicateRecordError("ORD-1", TransactionKindPayment), sentinel: ErrDuplicateRecord, textCode: ErrorDuplicateRecord, status: http.StatusConflict},
		{name: "stale", err: StaleTransitionError("ORD-1", TransactionStatusSuccess, TransactionStatusPending), sentinel: ErrStaleTransition, textCode: ErrorStaleTransition, status: http.StatusConflict},
		{name: "not found", err: NotFoundError("ORD-1", TransactionKindPayment), sentinel: ErrNotFound, textCode: ErrorNotFound, status: http.StatusNotFound},
		{name: "signature", err: InvalidSignatureError("Invalid BDPay signature", nil), sentinel: ErrInvalidSignature, textCode: ErrorInvalidSignature, status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !stderrors.Is(tc.err, tc.sentinel) {
				t.Fatalf("expected errors.Is to match sentinel, got %v", tc.err)
			}
			var rich *goerrors.Error
			if !goerrors.As(tc.err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", tc.err)
			}
			if rich.TextCode != tc.textCode || rich.Code != tc.status {
				t.Fatalf("expected %s/%d, got %s/%d", tc.textCode, tc.status, rich.TextCode, rich.Code)
			}
		})
	}
}

func TestMissingOrderIDError_UsesCallbackMessage(t *testing.T) {
	var rich *goerrors.Error
	if !goerrors.As(MissingOrderIDError(nil), &rich) {
		t.Fatalf("expected go-errors envelope")
	}
	if rich.Message != MissingOrderIDMessage {
		t.Fatalf("expected %q, got %q", MissingOrderIDMessage, rich.Message)
	}
}

func TestProviderError_DefaultsToBadGateway(t *testing.T) {
	err := ProviderError(stderrors.New("dial"), "", 0, "", nil)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope")
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rich.Code)
	}
	if rich.Message != "BDPay API request failed" {
		t.Fatalf("unexpected default message %q", rich.Message)
	}
	if !stderrors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected provider sentinel")
	}
}

func TestInternalError_KeepsSource(t *testing.T) {
	source := stderrors.New("disk full")
	err := InternalError(source, "core: persist transaction", map[string]any{"order_id": "ORD-1"})
	if !stderrors.Is(err, source) {
		t.Fatalf("expected source to be wrapped")
	}
	if !HasTextCode(err, ErrorInternal) {
		t.Fatalf("expected internal text code, got %v", err)
	}
	if HasTextCode(source, ErrorInternal) {
		t.Fatalf("expected plain errors to carry no text code")
	}
}
