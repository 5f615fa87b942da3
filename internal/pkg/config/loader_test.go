package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "custom")
	assert.Equal(t, "custom", LoadEnvString("TEST_STRING", "default"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default", LoadEnvString("TEST_STRING", "default"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		want         string
		wantFallback bool
	}{
		{name: "unset uses default silently", value: "", want: "@every 1h"},
		{name: "valid descriptor", value: "@every 30m", want: "@every 30m"},
		{name: "valid five fields", value: "0 * * * *", want: "0 * * * *"},
		{name: "invalid falls back", value: "every hour", want: "@every 1h", wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SCHEDULE", tt.value)

			res := LoadEnvWithFallback("TEST_SCHEDULE", "@every 1h", ValidateCronSchedule)

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantFallback, res.FallbackApplied)
			if tt.wantFallback {
				assert.Contains(t, res.Warning, "TEST_SCHEDULE")
				assert.Contains(t, res.Warning, "every hour")
			} else {
				assert.Empty(t, res.Warning)
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	validator := func(d time.Duration) error { return ValidateDuration(d, time.Second, time.Minute) }
	tests := []struct {
		name         string
		value        string
		want         time.Duration
		wantFallback bool
	}{
		{name: "unset", value: "", want: 10 * time.Second},
		{name: "valid", value: "30s", want: 30 * time.Second},
		{name: "unparsable", value: "ten seconds", want: 10 * time.Second, wantFallback: true},
		{name: "out of range", value: "2h", want: 10 * time.Second, wantFallback: true},
		{name: "trimmed", value: " 5s ", want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)

			res := LoadEnvDuration("TEST_TIMEOUT", 10*time.Second, validator)

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantFallback, res.FallbackApplied)
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	validator := func(v int) error { return ValidateIntRange(v, 1, 64) }
	tests := []struct {
		name         string
		value        string
		want         int
		wantFallback bool
	}{
		{name: "unset", value: "", want: 8},
		{name: "valid", value: "16", want: 16},
		{name: "not a number", value: "many", want: 8, wantFallback: true},
		{name: "zero", value: "0", want: 8, wantFallback: true},
		{name: "too large", value: "65", want: 8, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_CONCURRENCY", tt.value)

			res := LoadEnvInt("TEST_CONCURRENCY", 8, validator)

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantFallback, res.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		value        string
		want         bool
		wantFallback bool
	}{
		{value: "", want: false},
		{value: "true", want: true},
		{value: "1", want: true},
		{value: "YES", want: true},
		{value: "off", want: false},
		{value: "maybe", want: false, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_ENABLED", tt.value)

			res := LoadEnvBool("TEST_ENABLED", false)

			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.wantFallback, res.FallbackApplied)
		})
	}
}

type fakeRecorder struct {
	validationErrors []string
	fallbacks        []string
}

func (r *fakeRecorder) RecordValidationError(field string) {
	r.validationErrors = append(r.validationErrors, field)
}

func (r *fakeRecorder) RecordFallback(field, fallbackType string) {
	r.fallbacks = append(r.fallbacks, field+":"+fallbackType)
}

func TestFallbacks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	recorder := &fakeRecorder{}
	f := NewFallbacks(logger, recorder)

	got := Track(f, "scan_schedule", Result[string]{Value: "@every 1h"})
	assert.Equal(t, "@every 1h", got)
	assert.False(t, f.Applied())

	n := Track(f, "dispatch_concurrency", Result[int]{Value: 8, Warning: "invalid", FallbackApplied: true})
	assert.Equal(t, 8, n)

	require.True(t, f.Applied())
	assert.Equal(t, []string{"dispatch_concurrency"}, f.Fields())
	assert.Equal(t, []string{"dispatch_concurrency"}, recorder.validationErrors)
	assert.Equal(t, []string{"dispatch_concurrency:default"}, recorder.fallbacks)
	assert.Contains(t, buf.String(), "configuration fallback applied")
	assert.Contains(t, buf.String(), "dispatch_concurrency")
}

func TestFallbacks_NilRecorder(t *testing.T) {
	f := NewFallbacks(nil, nil)
	assert.NotPanics(t, func() {
		Track(f, "field", Result[bool]{Value: true, FallbackApplied: true})
	})
	assert.True(t, f.Applied())
}
