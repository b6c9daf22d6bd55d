// config_validation.go - startup validation for nextcube.
//
// Every problem is collected so the operator sees all of them at once; any
// error keeps the server from binding a listener.
package server

import (
	"fmt"
	"net/url"
	"strings"

	"nextcube/internal/accesslog"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator validates application configuration.
type ConfigValidator struct {
	errors []ConfigValidationError
}

// NewConfigValidator creates a new configuration validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

// AddError adds a validation error.
func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(v.errors)))
	for i, err := range v.errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidatePort checks port is a legal TCP port. allowZero accepts 0 for
// optional listeners.
func (v *ConfigValidator) ValidatePort(key string, port int, allowZero bool) {
	if allowZero && port == 0 {
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, fmt.Sprintf("port must be between 1 and 65535 (got %d)", port))
	}
}

// ValidatePair requires two settings to be both present or both absent.
func (v *ConfigValidator) ValidatePair(keyA, a, keyB, b string) {
	if (a == "") != (b == "") {
		v.AddError(keyA+"/"+keyB, "must be provided together")
	}
}

// ValidateRequired validates that a required value is set.
func (v *ConfigValidator) ValidateRequired(key, value string) {
	if value == "" {
		v.AddError(key, "required value not set")
	}
}

// ValidateURL validates that a value is a valid URL with one of schemes.
func (v *ConfigValidator) ValidateURL(key, value string, schemes ...string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}

	for _, s := range schemes {
		if parsed.Scheme == s {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("URL must use one of: %s", strings.Join(schemes, ", ")))
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidatePositive validates that a value is a positive integer.
func (v *ConfigValidator) ValidatePositive(key string, value int64) {
	if value <= 0 {
		v.AddError(key, "must be a positive integer")
	}
}

// Validate checks every setting of c and returns all problems at once.
func (c Config) Validate() error {
	v := NewConfigValidator()

	v.ValidatePort("port", c.Port, false)
	v.ValidatePort("metrics-port", c.MetricsPort, true)
	if c.MetricsPort != 0 && c.MetricsPort == c.Port {
		v.AddError("metrics-port", "must differ from port")
	}
	v.ValidatePair("tls-cert", c.TLSCert, "tls-key", c.TLSKey)
	if c.H2C && c.TLSEnabled() {
		v.AddError("h2c", "cleartext HTTP/2 cannot be combined with TLS")
	}

	v.ValidatePositive("max-body", c.MaxBodyBytes)
	v.ValidateEnum("log-format", string(c.LogFormat), []string{string(accesslog.ModeText), string(accesslog.ModeJSON)})
	v.ValidateEnum("log-level", c.LogLevel, []string{"debug", "info", "warn", "error"})

	if c.S3.Enabled() {
		v.ValidateRequired("s3-endpoint", c.S3.Endpoint)
		v.ValidateRequired("s3-access-key", c.S3.AccessKey)
		v.ValidateRequired("s3-secret-key", c.S3.SecretKey)
		v.ValidateRequired("s3-bucket", c.S3.Bucket)
		if strings.Contains(c.S3.Endpoint, "://") {
			v.ValidateURL("s3-endpoint", c.S3.Endpoint, "http", "https")
		}
	} else {
		v.ValidateRequired("static-dir", c.StaticDir)
		v.ValidateRequired("upload-dir", c.UploadDir)
	}

	v.ValidateURL("database-url", c.DatabaseURL, "postgres", "postgresql")

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}
