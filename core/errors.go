package core

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-bdpay/security"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration    = "BDPAY_CONFIGURATION"
	ErrorInvalidKeyFormat = security.TextCodeInvalidKeyFormat
	ErrorSigningFailed    = security.TextCodeSigningFailed
	ErrorMissingOrderID   = "BDPAY_MISSING_ORDER_ID"
	ErrorDuplicateRecord  = "BDPAY_DUPLICATE_RECORD"
	ErrorStaleTransition  = "BDPAY_STALE_TRANSITION"
	ErrorNotFound         = "BDPAY_NOT_FOUND"
	ErrorProvider         = "BDPAY_PROVIDER_ERROR"
	ErrorInvalidSignature = "BDPAY_INVALID_SIGNATURE"
	ErrorBadInput         = "BDPAY_BAD_INPUT"
	ErrorInternal         = "BDPAY_INTERNAL_ERROR"
)

const MissingOrderIDMessage = "Missing order_id in webhook data"

var (
	ErrConfiguration    = errors.New("core: configuration error")
	ErrMissingOrderID   = errors.New("core: missing order_id")
	ErrDuplicateRecord  = errors.New("core: duplicate transaction record")
	ErrStaleTransition  = errors.New("core: stale status transition")
	ErrNotFound         = errors.New("core: transaction not found")
	ErrProviderFailure  = errors.New("core: provider request failed")
	ErrInvalidSignature = errors.New("core: invalid signature")
)

func ConfigurationError(message string, metadata map[string]any) error {
	return newSentinelError(ErrConfiguration, message, goerrors.CategoryInternal, ErrorConfiguration, metadata)
}

func MissingOrderIDError(metadata map[string]any) error {
	return newSentinelError(ErrMissingOrderID, MissingOrderIDMessage, goerrors.CategoryBadInput, ErrorMissingOrderID, metadata)
}

func DuplicateRecordError(orderID string, kind TransactionKind) error {
	return newSentinelError(ErrDuplicateRecord, "core: transaction already exists", goerrors.CategoryConflict, ErrorDuplicateRecord, map[string]any{
		"order_id": orderID,
		"type":     string(kind),
	})
}

func StaleTransitionError(orderID string, from, to TransactionStatus) error {
	return newSentinelError(ErrStaleTransition, "core: status transition rejected", goerrors.CategoryConflict, ErrorStaleTransition, map[string]any{
		"order_id": orderID,
		"from":     string(from),
		"to":       string(to),
	})
}

func NotFoundError(orderID string, kind TransactionKind) error {
	return newSentinelError(ErrNotFound, "core: transaction not found", goerrors.CategoryNotFound, ErrorNotFound, map[string]any{
		"order_id": orderID,
		"type":     string(kind),
	})
}

func InvalidSignatureError(message string, metadata map[string]any) error {
	return newSentinelError(ErrInvalidSignature, message, goerrors.CategoryAuth, ErrorInvalidSignature, metadata)
}

// ProviderError preserves the gateway message, error code and decoded body.
func ProviderError(source error, message string, statusCode int, errorCode string, details map[string]any) error {
	if strings.TrimSpace(message) == "" {
		message = "BDPay API request failed"
	}
	wrapped := ErrProviderFailure
	if source != nil {
		wrapped = errors.Join(ErrProviderFailure, source)
	}
	err := goerrors.Wrap(wrapped, goerrors.CategoryExternal, message).
		WithTextCode(ErrorProvider)
	if statusCode >= 400 {
		err.WithCode(statusCode)
	} else {
		err.WithCode(http.StatusBadGateway)
	}
	metadata := map[string]any{"status_code": statusCode}
	if errorCode != "" {
		metadata["error_code"] = errorCode
	}
	if len(details) > 0 {
		metadata["details"] = details
	}
	err.WithMetadata(metadata)
	return err
}

// ValidationError reports missing or malformed request fields.
func ValidationError(message string, fields ...goerrors.FieldError) error {
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// InternalError wraps an unexpected failure without exposing its text.
func InternalError(source error, message string, metadata map[string]any) error {
	if source == nil {
		return newServiceError(message, goerrors.CategoryInternal, ErrorInternal)
	}
	err := goerrors.Wrap(source, goerrors.CategoryInternal, message)
	ensureServiceErrorEnvelope(err)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func newSentinelError(
	sentinel error,
	message string,
	category goerrors.Category,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.Wrap(sentinel, category, message).
		WithCode(serviceHTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, security.ErrInvalidKeyFormat):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorInvalidKeyFormat)
	case errors.Is(err, security.ErrSigningFailed):
		return newServiceError(err.Error(), goerrors.CategoryInternal, ErrorSigningFailed)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not configured"):
		return newServiceError(err.Error(), goerrors.CategoryInternal, ErrorConfiguration)
	case strings.Contains(msg, "signature"):
		return newServiceError(err.Error(), goerrors.CategoryAuth, ErrorInvalidSignature)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorInvalidSignature
	case goerrors.CategoryConflict:
		return ErrorDuplicateRecord
	case goerrors.CategoryExternal:
		return ErrorProvider
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError normalizes any error into the go-errors envelope used across the
// module.
func MapError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}
