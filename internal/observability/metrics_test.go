package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("should count workflow outcomes", func(t *testing.T) {
		before := testutil.ToFloat64(metricWorkflowRuns.WithLabelValues("search", "found"))
		ObserveWorkflow("search", "found", 3*time.Second)
		after := testutil.ToFloat64(metricWorkflowRuns.WithLabelValues("search", "found"))
		assert.Equal(t, before+1, after)
	})

	t.Run("should track open pages", func(t *testing.T) {
		before := testutil.ToFloat64(metricOpenPages)
		PageOpened()
		PageOpened()
		PageClosed()
		assert.Equal(t, before+1, testutil.ToFloat64(metricOpenPages))
		PageClosed()
	})

	t.Run("should expose metrics over http", func(t *testing.T) {
		ObserveHTTPRequest("/buscar-processo", "200")
		ObserveBrowserLaunch("ok")

		srv := httptest.NewServer(MetricsHandler())
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Contains(t, string(body), "themis_http_requests_total")
		assert.Contains(t, string(body), "themis_browser_launches_total")
		assert.Contains(t, string(body), "go_goroutines")
	})

	t.Run("should not expose the default registry", func(t *testing.T) {
		stray := prometheus.NewCounter(prometheus.CounterOpts{Name: "stray_library_total", Help: "Registered globally."})
		require.NoError(t, prometheus.DefaultRegisterer.Register(stray))
		defer prometheus.DefaultRegisterer.Unregister(stray)
		stray.Inc()

		rec := httptest.NewRecorder()
		MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "stray_library_total")
	})
}
