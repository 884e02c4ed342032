package binding

import (
	"fmt"
	"reflect"
	"strings"

	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/pluginhub/plugin"
)

var validator *validatorV10.Validate

func init() {
	validator = validatorV10.New()
	// Report fields by their JSON names.
	validator.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = validator.RegisterValidation("plugin_name", func(fl validatorV10.FieldLevel) bool {
		return plugin.ValidName(fl.Field().String())
	})
}

func getValidationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "plugin_name":
		return "must be a lowercase slug of 2 to 64 characters (a-z, 0-9, - and _)"
	case "printascii":
		return "must contain only printable ASCII characters"
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}
