package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"diary-backend/domain/core/valueobjects"
	pkgerrors "diary-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// diarydate accepts YYYY.MM.DD or YYYY-MM-DD
	_ = v.RegisterValidation("diarydate", func(fl validator.FieldLevel) bool {
		_, err := valueobjects.ParseDiaryDate(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateStruct validates a struct based on its validation tags. Failures
// are returned as validation AppErrors.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return pkgerrors.NewValidationError(formatValidationError(err))
	}
	return nil
}

// ValidateVar validates a single value against a tag expression
func ValidateVar(field string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return pkgerrors.NewValidationError(formatFieldError(field, validationErrors[0]))
		}
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatFieldError(strings.ToLower(e.Field()), e))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

// formatFieldError formats a single field validation error
func formatFieldError(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "diarydate":
		return fmt.Sprintf("%s must be a date formatted YYYY.MM.DD", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
