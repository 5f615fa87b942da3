package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "invalid"} {
		t.Run("LOG_LEVEL="+level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", level)
			assert.NotNil(t, NewLogger())
			assert.NotNil(t, NewTextLogger())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	logger := newLogger(&buf, true)
	logger.Info("dropped")
	logger.Warn("kept")

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, "kept")
}

func TestWithDispatch(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithDispatchID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	WithDispatch(ctx, base).Info("dispatching")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", entry["dispatch_id"])
	assert.Equal(t, "dispatching", entry["msg"])
}

func TestWithDispatch_NoID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithDispatch(context.Background(), base)
	assert.Same(t, base, logger)

	logger.Info("plain")
	assert.NotContains(t, buf.String(), "dispatch_id")
}

func TestDispatchIDFromContext(t *testing.T) {
	assert.Empty(t, DispatchIDFromContext(context.Background()))
	assert.Equal(t, "abc", DispatchIDFromContext(WithDispatchID(context.Background(), "abc")))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithFields(base, map[string]interface{}{
		"clinic_id": "clinic-1",
		"scanned":   3,
	}).Info("scan finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "clinic-1", entry["clinic_id"])
	assert.Equal(t, float64(3), entry["scanned"])
}

func TestWithFields_Empty(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithFields(base, map[string]interface{}{}).Info("no fields")
	assert.Contains(t, buf.String(), "no fields")
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")
}

func TestLogger_ContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	ctx = WithDispatchID(ctx, "dispatch-7")

	WithDispatch(ctx, FromContext(ctx)).Info("first")
	WithDispatch(ctx, FromContext(ctx)).Warn("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "dispatch-7", entry["dispatch_id"])
	}
}

func BenchmarkLogger_WithDispatch(b *testing.B) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithDispatchID(context.Background(), "bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		WithDispatch(ctx, base).Info("bench")
	}
}
