package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/autodealer/internal/apperror"
)

// bcrypt accepts at most 72 bytes. "max=72" counts runes, not bytes.
const maxPasswordBytes = 72

// validate is the shared validator instance for every input struct in this
// package. Field names in errors are the JSON names the client sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	}); err != nil {
		panic(fmt.Sprintf("failed to register bcryptmax validator: %v", err))
	}

	return v
}

// fieldLabels are the user-facing names used in validation messages.
var fieldLabels = map[string]string{
	"firstName":       "Nama depan",
	"lastName":        "Nama belakang",
	"email":           "Email",
	"password":        "Password",
	"currentPassword": "Password saat ini",
	"newPassword":     "Password baru",
}

// validateInput runs struct validation and converts the first failure into
// an apperror.ErrValidation carrying a readable message.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
	}

	return fmt.Errorf("service: validating input: %w", err)
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " wajib diisi"
	case "email":
		return "Format email tidak valid"
	case "min":
		return fmt.Sprintf("%s minimal %s karakter", label, fe.Param())
	case "max", "bcryptmax":
		return label + " terlalu panjang"
	default:
		return label + " tidak valid"
	}
}
