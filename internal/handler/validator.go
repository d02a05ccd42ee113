package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	errInvalidPayload = errors.New("invalid request payload")
	errUnauthorized   = errors.New("unauthorized")
)

// AppValidator wraps go-playground/validator for echo.
type AppValidator struct {
	validator *validator.Validate
}

// NewAppValidator creates a new AppValidator.
func NewAppValidator() *AppValidator {
	return &AppValidator{validator: validator.New()}
}

// Validate validates a struct using go-playground/validator tags.
func (v *AppValidator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return fmt.Errorf("%w: %s failed on '%s'", errInvalidPayload, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}
