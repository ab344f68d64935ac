package inbound

import (
	"errors"
	"net/http"

	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MissingSignatureMessage = "Missing BDPay signature header"
	InvalidSignatureMessage = "Invalid BDPay signature"
)

var ErrMissingSignature = errors.New("inbound: missing signature header")

// inboundFailure describes the envelope of one class of dispatch error.
type inboundFailure struct {
	category goerrors.Category
	status   int
	textCode string
}

var (
	failBadInput  = inboundFailure{goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput}
	failInternal  = inboundFailure{goerrors.CategoryInternal, http.StatusInternalServerError, core.ErrorInternal}
	failOperation = inboundFailure{goerrors.CategoryOperation, http.StatusInternalServerError, core.ErrorInternal}
	failNotFound  = inboundFailure{goerrors.CategoryNotFound, http.StatusNotFound, core.ErrorNotFound}
	failConflict  = inboundFailure{goerrors.CategoryConflict, http.StatusConflict, core.ErrorDuplicateRecord}
	failSignature = inboundFailure{goerrors.CategoryAuth, http.StatusUnauthorized, core.ErrorInvalidSignature}
)

// wrap builds the error, wrapping source when it is non-nil.
func (f inboundFailure) wrap(source error, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, f.category)
	} else {
		err = goerrors.Wrap(source, f.category, message)
	}
	err.WithCode(f.status).WithTextCode(f.textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func (f inboundFailure) new(message string, metadata map[string]any) error {
	return f.wrap(nil, message, metadata)
}

func inboundBadInput(message string, metadata map[string]any) error {
	return failBadInput.new(message, metadata)
}

func inboundInternal(message string, metadata map[string]any) error {
	return failInternal.new(message, metadata)
}

// missingSignatureError matches both ErrMissingSignature and
// core.ErrInvalidSignature.
func missingSignatureError(metadata map[string]any) error {
	return failSignature.wrap(errors.Join(ErrMissingSignature, core.ErrInvalidSignature), MissingSignatureMessage, metadata)
}

// IsSignatureError reports whether err came from request verification.
func IsSignatureError(err error) bool {
	return errors.Is(err, core.ErrInvalidSignature)
}
