package binding

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	validatorV10 "github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies read by JSON.
const MaxBodyBytes = 1 << 20

const (
	InvalidRequestBodyError = "invalid request body"
)

type BindError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e BindError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s' %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type ValidationErrors []BindError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Error())
}

// JSON decodes the request body into v and validates it. An empty body is
// treated as {} when allowEmpty is set, so endpoints whose fields are all
// optional accept bodiless POSTs.
func JSON(r *http.Request, v any, opts ...Option) error {
	options := applyDecodeOptions(opts...)
	if r == nil || r.Body == nil {
		if !options.allowEmpty {
			return &BindError{Type: "bind_error", Message: "request body is empty"}
		}
		return Validate(v)
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return &BindError{Type: "bind_error", Message: "failed to read request body: " + err.Error()}
	}
	if len(body) > MaxBodyBytes {
		return &BindError{Type: "bind_error", Message: "request body is too large"}
	}
	if len(body) == 0 {
		if !options.allowEmpty {
			return &BindError{Type: "bind_error", Message: "request body is empty"}
		}
		body = []byte("{}")
	}

	if err := decodeJSON(body, v, options); err != nil {
		return &BindError{Type: "json_error", Message: "failed to unmarshal JSON: " + err.Error()}
	}
	return Validate(v)
}

// Validate runs struct tag validation and converts failures to
// ValidationErrors.
func Validate(v any) error {
	err := validator.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validatorV10.ValidationErrors
	if errors.As(err, &validationErrors) {
		bindErrors := make(ValidationErrors, 0, len(validationErrors))
		for _, fe := range validationErrors {
			bindErrors = append(bindErrors, BindError{
				Type:    "validation_error",
				Field:   fe.Field(),
				Message: getValidationMessage(fe),
			})
		}
		return bindErrors
	}
	return &BindError{Type: "validation_error", Message: err.Error()}
}

// IsValidation reports whether err came from field validation rather than
// from reading or decoding the body.
func IsValidation(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}
