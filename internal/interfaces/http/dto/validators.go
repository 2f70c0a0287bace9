package dto

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var paymentMethods = map[string]bool{
	"CASH":    true,
	"GCASH":   true,
	"CARD":    true,
	"BALANCE": true,
}

// RegisterValidations installs custom binding rules on gin's validator
// engine. Must run before the first request is bound.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return paymentMethods[fl.Field().String()]
	})
}
