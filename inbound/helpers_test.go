package inbound

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/security"
)

var (
	testCodecOnce sync.Once
	testCodec     *security.Codec
	testCodecErr  error
)

func newTestCodec(t *testing.T) *security.Codec {
	t.Helper()
	testCodecOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 1024)
		if err != nil {
			testCodecErr = err
			return
		}
		privateDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			testCodecErr = err
			return
		}
		publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			testCodecErr = err
			return
		}
		testCodec, testCodecErr = security.NewCodecFromStrings(
			base64.StdEncoding.EncodeToString(privateDER),
			base64.StdEncoding.EncodeToString(publicDER),
		)
	})
	if testCodecErr != nil {
		t.Fatalf("build test codec: %v", testCodecErr)
	}
	return testCodec
}

func signBody(t *testing.T, body []byte) string {
	t.Helper()
	payload, err := core.DecodePayload(body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	signature, err := newTestCodec(t).Sign(payload)
	if err != nil {
		t.Fatalf("sign body: %v", err)
	}
	return signature
}

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(context.Context, core.InboundRequest) error {
	v.calls++
	return v.err
}

type stubHandler struct {
	surface string
	result  core.InboundResult
	err     error
	calls   int
	mu      sync.Mutex
}

func (h *stubHandler) Surface() string { return h.surface }

func (h *stubHandler) Handle(context.Context, core.InboundRequest) (core.InboundResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.err != nil {
		return core.InboundResult{}, h.err
	}
	return h.result, nil
}

func acceptedResult() core.InboundResult {
	return core.InboundResult{Accepted: true, StatusCode: 200, Body: map[string]any{"status": "success"}}
}
