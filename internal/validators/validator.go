package validators

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator used by the faucet surface. The
// exchange dialects keep their own literal error ladders; generic
// validation messages must never leak onto those wires.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()
	validate.RegisterValidation("uppercase", validateUppercase)
	return &Validator{validate: validate}
}

// Validate validates a struct.
func (v *Validator) Validate(s interface{}) error {
	return v.validate.Struct(s)
}

// FormatErrors flattens validation errors into field: message lines.
func (v *Validator) FormatErrors(err error) []string {
	var messages []string
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, validationError := range validationErrors {
			messages = append(messages, validationError.Field()+": "+validationError.Tag())
		}
	}
	return messages
}

func validateUppercase(fl validator.FieldLevel) bool {
	return fl.Field().String() == strings.ToUpper(fl.Field().String())
}
