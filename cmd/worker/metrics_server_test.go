package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vetcare/internal/domain/entity"
	"vetcare/internal/usecase/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannelHealth []notify.ChannelHealthStatus

func (s stubChannelHealth) ChannelHealth() []notify.ChannelHealthStatus { return s }

func TestChannelHealthHandler(t *testing.T) {
	tests := []struct {
		name        string
		statuses    stubChannelHealth
		wantCode    int
		wantHealthy bool
	}{
		{
			name: "all closed",
			statuses: stubChannelHealth{
				{Channel: entity.ChannelInApp, State: "closed"},
				{Channel: entity.ChannelEmail, State: "closed"},
			},
			wantCode:    http.StatusOK,
			wantHealthy: true,
		},
		{
			name: "half-open is still healthy",
			statuses: stubChannelHealth{
				{Channel: entity.ChannelChat, State: "half-open"},
			},
			wantCode:    http.StatusOK,
			wantHealthy: true,
		},
		{
			name: "open breaker",
			statuses: stubChannelHealth{
				{Channel: entity.ChannelInApp, State: "closed"},
				{Channel: entity.ChannelChat, State: "open", CircuitBreakerOpen: true},
			},
			wantCode:    http.StatusServiceUnavailable,
			wantHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health/channels", nil)
			metricsMux(tt.statuses).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp ChannelHealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantHealthy, resp.Healthy)
			assert.Len(t, resp.Channels, len(tt.statuses))
		})
	}
}

func TestMetricsMux_ServesPrometheus(t *testing.T) {
	rec := httptest.NewRecorder()
	metricsMux(stubChannelHealth{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
