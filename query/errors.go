package query

import (
	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
)

func queryDependencyError(message string) error {
	return core.InternalError(nil, message, nil)
}

func queryValidationError(field string, message string) error {
	return core.ValidationError("query: invalid "+field, goerrors.FieldError{Field: field, Message: message})
}
