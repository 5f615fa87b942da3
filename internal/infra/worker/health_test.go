package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h http.Handler, path string) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

func TestHealthServer_Liveness(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())

	code, resp := getHealth(t, server.Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthServer_Readiness(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())
	dbUp := true
	server.AddCheck("database", func(context.Context) error {
		if dbUp {
			return nil
		}
		return errors.New("connection refused")
	})

	code, resp := getHealth(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)

	server.SetReady(true)
	code, resp = getHealth(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"database": "ok"}, resp.Checks)

	dbUp = false
	code, resp = getHealth(t, server.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, map[string]string{"database": "failing"}, resp.Checks)
}

func TestHealthServer_RejectsOtherMethods(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthServer_StartStop(t *testing.T) {
	server := NewHealthServer("127.0.0.1:0", discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("health server did not stop")
	}
}
