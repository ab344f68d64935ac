package security

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidKeyFormat = "BDPAY_INVALID_KEY_FORMAT"
	TextCodeSigningFailed    = "BDPAY_SIGNING_FAILED"
)

var (
	ErrInvalidKeyFormat = errors.New("security: invalid key format")
	ErrSigningFailed    = errors.New("security: signing failed")
)

func invalidKeyError(message string, source error, metadata map[string]any) error {
	if source == nil {
		source = ErrInvalidKeyFormat
	} else {
		source = errors.Join(ErrInvalidKeyFormat, source)
	}
	err := goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeInvalidKeyFormat)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func signingError(message string, source error, metadata map[string]any) error {
	if source == nil {
		source = ErrSigningFailed
	} else {
		source = errors.Join(ErrSigningFailed, source)
	}
	err := goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextCodeSigningFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
