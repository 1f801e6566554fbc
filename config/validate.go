package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report yaml keys instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})

	return v
}

// Validate checks the configuration and returns the first problem found,
// named by its yaml path (e.g., "server.port: must not exceed 65535").
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "required_without":
		return fmt.Errorf("%s: field is required unless %s is set", field, yamlName(e.Param()))
	case "required_with":
		return fmt.Errorf("%s: field is required when %s is set", field, yamlName(e.Param()))
	case "gte", "min":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "lte", "max":
		return fmt.Errorf("%s: must not exceed %s", field, e.Param())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
	case "duration":
		return fmt.Errorf("%s: %q is not a positive duration", field, e.Value())
	case "url":
		return fmt.Errorf("%s: %q is not a valid URL", field, e.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}

// yamlName maps the Go field names used in cross-field tags to yaml keys.
func yamlName(field string) string {
	switch field {
	case "RedisURL":
		return "redis_url"
	case "TLSKeyFile":
		return "tls_key_file"
	case "TLSCertFile":
		return "tls_cert_file"
	default:
		return field
	}
}
