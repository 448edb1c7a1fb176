package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"droppers-api/apperr"
	"droppers-api/config"
)

var rePhone = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// newValidator builds a validator whose length tags follow rules.
func newValidator(rules config.Rules) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	must(v.RegisterValidation("personname", minRunes(rules.MinNameLength)))
	must(v.RegisterValidation("address", minRunes(rules.MinAddressLength)))
	must(v.RegisterValidation("description", minRunes(rules.MinDescriptionLength)))
	must(v.RegisterValidation("password", minRunes(rules.MinPasswordLength)))
	must(v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return rePhone.MatchString(phoneSeparators.Replace(fl.Field().String()))
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func minRunes(n int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	}
}

// validateStruct runs v over s and folds failures into a Validation error.
func validateStruct(v *validator.Validate, rules config.Rules, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.Internal, "validation failed", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe, rules)
	}
	first := fieldMessage(verrs[0], rules)
	return apperr.Invalid(first, fields)
}

func fieldMessage(fe validator.FieldError, rules config.Rules) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "email":
		return f + " must be a valid email address"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, fe.Param())
	case "phone":
		return f + " must be a valid phone number"
	case "personname":
		return fmt.Sprintf("%s must be at least %d characters", f, rules.MinNameLength)
	case "address":
		return fmt.Sprintf("%s must be at least %d characters", f, rules.MinAddressLength)
	case "description":
		return fmt.Sprintf("%s must be at least %d characters", f, rules.MinDescriptionLength)
	case "password":
		return fmt.Sprintf("%s must be at least %d characters", f, rules.MinPasswordLength)
	default:
		return f + " is invalid"
	}
}
