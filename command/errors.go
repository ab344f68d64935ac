package command

import (
	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
)

func commandDependencyError(message string) error {
	return core.InternalError(nil, message, nil)
}

func commandValidationError(field string, message string) error {
	return core.ValidationError("command: invalid "+field, goerrors.FieldError{Field: field, Message: message})
}
