// Package validate wraps go-playground/validator with the rules the workflows share
// and converts its failures into apperr validation errors.
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/swaymx/sway-api/internal/apperr"
)

var (
	postalCodeRe = regexp.MustCompile(`^[0-9]{5}$`)
	cardNumberRe = regexp.MustCompile(`^[0-9]{16}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvRe        = regexp.MustCompile(`^[0-9]{3,4}$`)
	phoneRe      = regexp.MustCompile(`^[0-9]{10,15}$`)
	phoneStrip   = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

var (
	once     sync.Once
	instance *validator.Validate
)

// V returns the shared validator.
func V() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "postalcode", func(fl validator.FieldLevel) bool {
			return postalCodeRe.MatchString(fl.Field().String())
		})
		mustRegister(v, "card16", func(fl validator.FieldLevel) bool {
			return cardNumberRe.MatchString(StripSpaces(fl.Field().String()))
		})
		mustRegister(v, "mmyy", func(fl validator.FieldLevel) bool {
			return cardExpiryRe.MatchString(fl.Field().String())
		})
		mustRegister(v, "cvv", func(fl validator.FieldLevel) bool {
			return cvvRe.MatchString(fl.Field().String())
		})
		mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
			return phoneRe.MatchString(CleanPhone(fl.Field().String()))
		})
		mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Struct validates s and returns the first failure as an *apperr.Error naming the field.
func Struct(s any) error {
	err := V().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Internal(err)
	}
	fe := verrs[0]
	field := fieldPath(fe)
	return apperr.Validation(field, message(field, fe))
}

// fieldPath drops the root struct name: "OrderInput.shipping_address.postal_code" -> "shipping_address.postal_code".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "postalcode":
		return fmt.Sprintf("%s must be exactly 5 digits", field)
	case "card16":
		return fmt.Sprintf("%s must have 16 digits", field)
	case "mmyy":
		return fmt.Sprintf("%s must use the MM/YY format", field)
	case "cvv":
		return fmt.Sprintf("%s must have 3 or 4 digits", field)
	case "phone":
		return fmt.Sprintf("%s must have between 10 and 15 digits", field)
	case "email":
		return fmt.Sprintf("%s is not a valid email address", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// StripSpaces removes every whitespace rune.
func StripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func CleanPhone(s string) string {
	return phoneStrip.Replace(strings.TrimSpace(s))
}

// CollapseSpaces trims s and reduces inner whitespace runs to a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
