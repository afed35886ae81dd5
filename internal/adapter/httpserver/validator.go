package httpserver

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/pscheid92/lobbyrelay/internal/platform/errors"
)

// lobbyParams identifies a lobby by the "user" query parameter.
type lobbyParams struct {
	User string `query:"user" validate:"required,max=256"`
}

type streamerParams struct {
	User string `query:"user" validate:"required,max=256"`
	Key  string `query:"key" validate:"required,max=64"`
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("query"); name != "" {
			return name
		}
		return field.Name
	})
	return &requestValidator{validate: v}
}

// Validate returns a validation *apperrors.Error naming the first bad field.
func (v *requestValidator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return apperrors.ValidationError(describe(first)).WithField("field", first.Field())
	}
	return apperrors.ValidationError(err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
