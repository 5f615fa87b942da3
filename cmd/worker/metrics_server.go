package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vetcare/internal/usecase/notify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChannelHealthResponse represents the health status of all notification channels.
type ChannelHealthResponse struct {
	Healthy  bool                         `json:"healthy"`
	Channels []notify.ChannelHealthStatus `json:"channels"`
}

// channelHealthReporter is the part of notify.Service the metrics server needs.
type channelHealthReporter interface {
	ChannelHealth() []notify.ChannelHealthStatus
}

// startMetricsServer serves Prometheus metrics and channel health on port
// until ctx is cancelled.
//
// Endpoints:
//   - GET /metrics - Prometheus scrape endpoint
//   - GET /health/channels - circuit breaker state per channel; 503 when any breaker is open
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, channels channelHealthReporter) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      metricsMux(channels),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

func metricsMux(channels channelHealthReporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health/channels", channelHealthHandler(channels))
	return mux
}

// channelHealthHandler creates a handler for GET /health/channels.
func channelHealthHandler(channels channelHealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		statuses := channels.ChannelHealth()

		healthy := true
		for _, status := range statuses {
			if status.CircuitBreakerOpen {
				healthy = false
			}
		}

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(ChannelHealthResponse{
			Healthy:  healthy,
			Channels: statuses,
		})
	}
}
