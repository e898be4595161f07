package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/specialist-booking/internal/card"
)

// RequestValidator adapts validator/v10 to echo.Validator.  Field names in
// messages are the JSON names.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("card_expiry", func(fl validator.FieldLevel) bool {
		return card.WellFormedExpiry(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register card_expiry validation: %v", err))
	}
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "card_expiry":
		return fmt.Errorf("%s must be MM/YYYY", fe.Field())
	case "len":
		return fmt.Errorf("%s must be %s characters", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Errorf("%s must contain digits only", fe.Field())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lt":
		return fmt.Errorf("%s must be less than %s", fe.Field(), fe.Param())
	}
	return fmt.Errorf("%s is invalid", fe.Field())
}
