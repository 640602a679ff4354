package models

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет структуру по тегам validate.
func Validate(v any) error {
	return validate.Struct(v)
}
