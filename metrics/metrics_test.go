package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/pluginhub/errors"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "load_error", Outcome(apperrors.NewLoadError("a", "enable", nil)))
	assert.Equal(t, "unknown", Outcome(fmt.Errorf("plain")))
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("enable", nil, 10*time.Millisecond)
	m.ObserveOperation("enable", nil, 10*time.Millisecond)
	m.ObserveOperation("enable", apperrors.NewLoadError("a", "enable", nil), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("enable", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("enable", "load_error")))

	m.SetLoaded(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.loaded))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("reload", nil, time.Second)
	m.ObserveLockWait(time.Second)
	m.SetLoaded(1)
	assert.Nil(t, m.Registry())

	called := false
	h := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware())
	r.Get("/plugins/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plugins/reports", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plugins/billing", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/plugins/{name}", "202")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveLockWait(5 * time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pluginhub_plugin_lock_wait_seconds_count 1")
}
