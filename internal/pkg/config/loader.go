// Package config loads settings from environment variables with a fail-open
// policy: an invalid value is replaced by its default, a warning is logged
// and the fallback is counted, but loading never fails.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of loading one setting.
type Result[T any] struct {
	Value T
	// Warning describes why the default was used; empty when it was not.
	Warning         string
	FallbackApplied bool
}

// LoadEnvString returns the variable's value, or defaultValue when it is
// unset or empty. No validation is performed.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it. An unset variable
// yields the default without a warning.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) Result[string] {
	return load(envKey, defaultValue, func(raw string) (string, error) { return raw, nil }, validator)
}

// LoadEnvDuration loads a Go duration string such as "30s" or "1h".
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) Result[time.Duration] {
	return load(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvInt loads a base-10 integer.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) Result[int] {
	return load(envKey, defaultValue, strconv.Atoi, validator)
}

// LoadEnvBool loads a boolean. It accepts the forms strconv.ParseBool
// accepts plus "yes"/"no" and "on"/"off".
func LoadEnvBool(envKey string, defaultValue bool) Result[bool] {
	return load(envKey, defaultValue, parseBool, nil)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func load[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) Result[T] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return Result[T]{Value: defaultValue}
	}

	value, err := parse(raw)
	if err == nil && validator != nil {
		err = validator(value)
	}
	if err != nil {
		return Result[T]{
			Value:           defaultValue,
			Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", envKey, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}
	return Result[T]{Value: value}
}

// FallbackRecorder receives fallback events, usually a *ConfigMetrics.
type FallbackRecorder interface {
	RecordValidationError(field string)
	RecordFallback(field, fallbackType string)
}

// Fallbacks collects the fallbacks applied while loading one component's
// settings, logging and recording each one.
type Fallbacks struct {
	logger   *slog.Logger
	recorder FallbackRecorder
	fields   []string
}

// NewFallbacks returns a collector. recorder may be nil.
func NewFallbacks(logger *slog.Logger, recorder FallbackRecorder) *Fallbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallbacks{logger: logger, recorder: recorder}
}

// Track returns res.Value after reporting a fallback for field, if any.
func Track[T any](f *Fallbacks, field string, res Result[T]) T {
	if res.FallbackApplied {
		f.fields = append(f.fields, field)
		if f.recorder != nil {
			f.recorder.RecordValidationError(field)
			f.recorder.RecordFallback(field, "default")
		}
		f.logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", res.Warning))
	}
	return res.Value
}

// Applied reports whether any tracked setting fell back to its default.
func (f *Fallbacks) Applied() bool { return len(f.fields) > 0 }

// Fields lists the settings that fell back, in load order.
func (f *Fallbacks) Fields() []string { return append([]string(nil), f.fields...) }
