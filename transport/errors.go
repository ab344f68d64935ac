package transport

import (
	"net/http"

	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
)

// failure builds a transport error, wrapping source when non-nil. The HTTP
// code and text code follow from category.
func failure(source error, category goerrors.Category, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		err.WithCode(http.StatusBadRequest).WithTextCode(core.ErrorBadInput)
	case goerrors.CategoryExternal:
		err.WithCode(http.StatusBadGateway).WithTextCode(core.ErrorProvider)
	default:
		err.WithCode(http.StatusInternalServerError).WithTextCode(core.ErrorInternal)
	}
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// retryable reports whether a failed attempt may be sent again. Only
// gateway-side failures are; requests that could not be built are final.
func retryable(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryExternal
	}
	return true
}
