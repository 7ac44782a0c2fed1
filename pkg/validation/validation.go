package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"smallbiznis-points/pkg/errutil"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v against its `validate` tags. The message is returned
// as-is so callers keep their domain wording; field errors land in Details.
func Struct(v any, message string) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errutil.BadRequest(message, err)
	}

	details := make([]errutil.Detail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, errutil.Detail{
			Field:   fe.Field(),
			Message: "failed on '" + fe.Tag() + "'",
		})
	}

	return errutil.BadRequest(message, nil, errutil.WithDetails(details...))
}
