package httpapi

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/chiro/erp/internal/platform/httpapi/dto"
)

var (
	setupValidatorOnce sync.Once
	currencyPattern    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// SetupValidator configures gin's validator: errors report JSON field names
// and the money/currency tags become available to request structs.
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		_ = v.RegisterValidation("decimal", validateDecimal)
		_ = v.RegisterValidation("currency", validateCurrency)
	})
}

// validateDecimal accepts strings that parse as a non-negative decimal.
func validateDecimal(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

func validateCurrency(fl validator.FieldLevel) bool {
	return currencyPattern.MatchString(fl.Field().String())
}

// ValidationDetails flattens validator errors into response details.
// Returns nil when err carries no field errors.
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " items"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "decimal":
		return "Must be a non-negative decimal amount"
	case "currency":
		return "Must be a three-letter ISO currency code"
	default:
		return "Invalid value"
	}
}
