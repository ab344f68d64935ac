package inbound

import (
	"context"
	"strings"

	"github.com/goliatone/go-bdpay/core"
	glog "github.com/goliatone/go-logger/glog"
)

// SignatureChecker verifies a gateway signature over decoded fields.
// core.Client satisfies it.
type SignatureChecker interface {
	VerifySignature(signature string, data map[string]any) bool
}

// SignatureCheckerFunc adapts a function such as security.Codec.Verify.
type SignatureCheckerFunc func(signature string, data map[string]any) bool

func (f SignatureCheckerFunc) VerifySignature(signature string, data map[string]any) bool {
	if f == nil {
		return false
	}
	return f(signature, data)
}

// SignatureVerifier checks the X-BDPay-Signature header against the JSON
// body of a callback.
type SignatureVerifier struct {
	checker SignatureChecker
	enabled bool
	logger  core.Logger
}

type VerifierOption func(*SignatureVerifier)

func WithVerifierLogger(logger core.Logger) VerifierOption {
	return func(v *SignatureVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewSignatureVerifier builds a verifier. With enabled set to false every
// request passes.
func NewSignatureVerifier(checker SignatureChecker, enabled bool, opts ...VerifierOption) *SignatureVerifier {
	v := &SignatureVerifier{
		checker: checker,
		enabled: enabled,
		logger:  glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

func (v *SignatureVerifier) Enabled() bool {
	return v != nil && v.enabled
}

func (v *SignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if !v.Enabled() {
		return nil
	}
	metadata := map[string]any{"surface": req.Surface}
	signature := headerValue(req.Headers, core.HeaderSignature)
	if signature == "" {
		v.logger.Warn("BDPay webhook received without signature header",
			"surface", req.Surface,
			"url", trimAny(req.Metadata["url"]),
		)
		return missingSignatureError(metadata)
	}
	if v.checker == nil {
		return inboundInternal("inbound: signature checker is not configured", metadata)
	}

	// A body that is not a JSON object is verified as an empty payload and
	// therefore fails.
	payload, err := core.DecodePayload(req.Body)
	if err != nil {
		payload = map[string]any{}
	}
	if !v.checker.VerifySignature(strings.TrimSpace(signature), payload) {
		v.logger.Warn("BDPay webhook signature verification failed",
			"surface", req.Surface,
			"signature", signature,
		)
		return core.InvalidSignatureError(InvalidSignatureMessage, metadata)
	}
	v.logger.Info("BDPay webhook signature verified successfully", "surface", req.Surface)
	return nil
}
