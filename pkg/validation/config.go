package validation

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// FieldError is one failed rule on a configuration field.
type FieldError struct {
	Config string
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %v", e.Config, e.Field, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Config, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ConfigValidator chains field rules over one config value and reports
// every failure, not only the first.
type ConfigValidator struct {
	config string
	failed []error
}

// NewConfigValidator starts a rule chain; config prefixes each field name
// in error messages.
func NewConfigValidator(config string) *ConfigValidator {
	return &ConfigValidator{config: config}
}

func (cv *ConfigValidator) reject(field, format string, args ...any) *ConfigValidator {
	cv.failed = append(cv.failed, &FieldError{
		Config: cv.config,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	})
	return cv
}

// Required rejects an empty string.
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		return cv.reject(field, "required field is empty")
	}
	return cv
}

// NonNegative rejects counts below zero.
func (cv *ConfigValidator) NonNegative(field string, value int) *ConfigValidator {
	return Min(cv, field, value, 0)
}

// Min rejects value below lo.
func Min[T cmp.Ordered](cv *ConfigValidator, field string, value, lo T) *ConfigValidator {
	if value < lo {
		return cv.reject(field, "%v is below minimum %v", value, lo)
	}
	return cv
}

// Between rejects value outside [lo, hi].
func Between[T cmp.Ordered](cv *ConfigValidator, field string, value, lo, hi T) *ConfigValidator {
	if value < lo || value > hi {
		return cv.reject(field, "%v is outside [%v, %v]", value, lo, hi)
	}
	return cv
}

// RangeFloat rejects NaN and values outside [lo, hi].
func (cv *ConfigValidator) RangeFloat(field string, value, lo, hi float64) *ConfigValidator {
	if math.IsNaN(value) {
		return cv.reject(field, "NaN is outside [%g, %g]", lo, hi)
	}
	return Between(cv, field, value, lo, hi)
}

// MinDuration rejects durations shorter than lo.
func (cv *ConfigValidator) MinDuration(field string, value, lo time.Duration) *ConfigValidator {
	return Min(cv, field, value, lo)
}

// OneOf rejects values not in allowed.
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	if !slices.Contains(allowed, value) {
		return cv.reject(field, "%q must be one of %v", value, allowed)
	}
	return cv
}

// Custom records the error returned by fn, wrapped so errors.Is still
// matches it.
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.failed = append(cv.failed, &FieldError{Config: cv.config, Field: field, Err: err})
	}
	return cv
}

// When runs rules only if condition holds.
func (cv *ConfigValidator) When(condition bool, rules func(*ConfigValidator)) *ConfigValidator {
	if condition {
		rules(cv)
	}
	return cv
}

// Validate returns nil when every rule passed, otherwise the FieldErrors
// joined.
func (cv *ConfigValidator) Validate() error {
	if len(cv.failed) == 1 {
		return cv.failed[0]
	}
	return errors.Join(cv.failed...)
}

// DefaultOr returns value unless it is the zero value.
func DefaultOr[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}

// DefaultOrInt returns value when positive, else fallback.
func DefaultOrInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// DefaultOrDuration returns value when positive, else fallback.
func DefaultOrDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
