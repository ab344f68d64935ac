package inbound

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestSignatureVerifier_AcceptsValidSignature(t *testing.T) {
	codec := newTestCodec(t)
	verifier := NewSignatureVerifier(SignatureCheckerFunc(codec.Verify), true)
	body := []byte(`{"order_id":"ORD-1","status":"success","amount":100000}`)

	err := verifier.Verify(context.Background(), core.InboundRequest{
		Surface: SurfacePayment,
		Headers: map[string]string{"x-bdpay-signature": signBody(t, body)},
		Body:    body,
	})
	if err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestSignatureVerifier_MissingHeader(t *testing.T) {
	verifier := NewSignatureVerifier(SignatureCheckerFunc(newTestCodec(t).Verify), true)
	err := verifier.Verify(context.Background(), core.InboundRequest{Body: []byte(`{"order_id":"ORD-1"}`)})
	if !errors.Is(err, ErrMissingSignature) || !IsSignatureError(err) {
		t.Fatalf("expected missing signature error, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Message != MissingSignatureMessage || rich.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected envelope %q %d", rich.Message, rich.Code)
	}
	if rich.TextCode != core.ErrorInvalidSignature {
		t.Fatalf("unexpected text code %q", rich.TextCode)
	}
}

func TestSignatureVerifier_TamperedBody(t *testing.T) {
	verifier := NewSignatureVerifier(SignatureCheckerFunc(newTestCodec(t).Verify), true)
	signature := signBody(t, []byte(`{"order_id":"ORD-1","amount":100000}`))

	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{core.HeaderSignature: signature},
		Body:    []byte(`{"order_id":"ORD-1","amount":900000}`),
	})
	if !errors.Is(err, core.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if errors.Is(err, ErrMissingSignature) {
		t.Fatalf("tampered body must not report a missing header")
	}
	if errorMessage(err) != InvalidSignatureMessage {
		t.Fatalf("unexpected message %q", errorMessage(err))
	}
}

func TestSignatureVerifier_NonJSONBodyFails(t *testing.T) {
	checked := false
	verifier := NewSignatureVerifier(SignatureCheckerFunc(func(_ string, data map[string]any) bool {
		checked = true
		return len(data) > 0
	}), true)
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{core.HeaderSignature: "abc"},
		Body:    []byte(`not json`),
	})
	if !checked || !IsSignatureError(err) {
		t.Fatalf("expected checker to reject empty payload, got %v", err)
	}
}

func TestSignatureVerifier_DisabledPassesThrough(t *testing.T) {
	verifier := NewSignatureVerifier(nil, false)
	if verifier.Enabled() {
		t.Fatalf("expected verifier disabled")
	}
	if err := verifier.Verify(context.Background(), core.InboundRequest{}); err != nil {
		t.Fatalf("expected bypass, got %v", err)
	}
}

func TestSignatureVerifier_MissingCheckerIsInternal(t *testing.T) {
	verifier := NewSignatureVerifier(nil, true)
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{core.HeaderSignature: "abc"},
		Body:    []byte(`{}`),
	})
	if IsSignatureError(err) || !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal configuration error, got %v", err)
	}
}
