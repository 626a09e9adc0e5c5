package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var environments = []string{"development", "staging", "production"}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("env", func(fl validator.FieldLevel) bool {
		return slices.Contains(environments, fl.Field().String())
	})
	v.RegisterStructValidation(validateTracing, TracingConfig{})
	return v
}

// validateTracing rejects an enabled tracer without a collector endpoint.
func validateTracing(sl validator.StructLevel) {
	tc := sl.Current().Interface().(TracingConfig)
	if tc.Enabled && strings.TrimSpace(tc.Endpoint) == "" {
		sl.ReportError(tc.Endpoint, "Endpoint", "Endpoint", "required_if_enabled", "")
	}
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ValidateWithDetails validates cfg and reports every failing field.
func ValidateWithDetails(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	details := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ConfigError{
			Field:   fe.Namespace(),
			Message: formatValidationError(fe),
			Value:   fe.Value(),
		})
	}
	return details
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "required_if_enabled":
		return "required when tracing is enabled"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "env":
		return fmt.Sprintf("must be one of [%s]", strings.Join(environments, " "))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
