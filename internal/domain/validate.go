package domain

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{6,18}[0-9]$`)
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("passengerclass", func(fl validator.FieldLevel) bool {
			return slices.Contains(PassengerClasses, fl.Field().String())
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidatePassenger checks the passenger form fields, excluding the seat.
func ValidatePassenger(p PassengerInfo) error {
	return structErrors(validatorInstance().Struct(p), "")
}

func ValidateTrip(t TripInfo) error {
	return structErrors(validatorInstance().Struct(t), "")
}

// ValidatePassengerAt is ValidatePassenger with field names prefixed by the
// passenger index, e.g. "passengers[1].email".
func ValidatePassengerAt(i int, p PassengerInfo) error {
	return structErrors(validatorInstance().Struct(p), fmt.Sprintf("passengers[%d].", i))
}

func structErrors(err error, prefix string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[prefix+fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "passengerclass":
		return "must be one of " + strings.Join(PassengerClasses, ", ")
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// MergeValidation folds several validation errors into one. Non-validation
// errors are returned as-is.
func MergeValidation(errs ...error) error {
	var merged *ValidationError
	for _, err := range errs {
		if err == nil {
			continue
		}
		ve, ok := err.(*ValidationError)
		if !ok {
			return err
		}
		if merged == nil {
			merged = &ValidationError{Fields: map[string]string{}}
		}
		for k, v := range ve.Fields {
			merged.Fields[k] = v
		}
	}
	if merged == nil {
		return nil
	}
	return merged
}
