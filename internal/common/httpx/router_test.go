package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		health HealthFunc
		code   int
		body   string
	}{
		{"no check", nil, http.StatusOK, `{"status":"ok"}`},
		{"healthy", func() error { return nil }, http.StatusOK, `{"status":"ok"}`},
		{"unhealthy", func() error { return errors.New("broker gone") }, http.StatusServiceUnavailable,
			`{"type":"unhealthy","title":"Service Unavailable","status":503,"detail":"broker gone"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewOpsRouter(nil, tt.health).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "grocery_test_total", Help: "test"})
	require.NoError(t, reg.Register(c))
	c.Add(7)

	rec := httptest.NewRecorder()
	NewOpsRouter(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grocery_test_total 7")
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	rec := httptest.NewRecorder()
	NewOpsRouter(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
