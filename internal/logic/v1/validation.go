package v1

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldMessages maps "<json field>.<tag>" to the message shown to the user.
var fieldMessages = map[string]string{
	"fullName.min":       "Full name must be at least 2 characters",
	"email.required":     "Invalid email address",
	"email.email":        "Invalid email address",
	"password.min":       "Password must be at least 6 characters",
	"role.oneof":         "You must select a role.",
	"name.required":      "Please enter a valid mentor name.",
	"skills.min":         "Please enter at least 3 characters for skills.",
	"skills.max":         "Skills input is too long.",
	"uid.required":       "Authentication details are missing. Please log in again.",
	"userEmail.required": "Authentication details are missing. Please log in again.",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct validation and converts failures into a
// *ValidationError with user-facing messages.
func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}
