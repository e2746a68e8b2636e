package api

import (
	"errors"
	"fmt"
	"strings"

	"optcache/internal/types"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch {
	case field == "label" && e.Tag() == "required":
		return types.EmptyLabelMessage
	case e.Tag() == "required":
		return fmt.Sprintf("%s is required", field)
	case e.Tag() == "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case e.Tag() == "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
