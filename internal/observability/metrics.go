package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "themis"

// registry holds only the service's collectors plus the Go runtime and
// process ones; libraries registering on the default registry stay out of
// /metrics.
var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

var (
	metricHTTPRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})

	metricWorkflowRuns = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "workflow",
		Name:      "runs_total",
		Help:      "Portal workflow runs by operation and outcome.",
	}, []string{"operation", "outcome"})

	metricWorkflowDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "workflow",
		Name:      "duration_seconds",
		Help:      "Wall time of portal workflow runs.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"operation"})

	metricBrowserLaunches = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "browser",
		Name:      "launches_total",
		Help:      "Browser launch attempts by result.",
	}, []string{"result"})

	metricOpenPages = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "browser",
		Name:      "pages_open",
		Help:      "Browser tabs currently owned by requests.",
	})
)

// ObserveHTTPRequest counts one served request.
func ObserveHTTPRequest(route, code string) {
	metricHTTPRequests.WithLabelValues(route, code).Inc()
}

// ObserveWorkflow records the outcome and duration of one workflow run.
func ObserveWorkflow(operation, outcome string, elapsed time.Duration) {
	metricWorkflowRuns.WithLabelValues(operation, outcome).Inc()
	metricWorkflowDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveBrowserLaunch counts a launch attempt; result is "ok" or "error".
func ObserveBrowserLaunch(result string) {
	metricBrowserLaunches.WithLabelValues(result).Inc()
}

// PageOpened and PageClosed track the number of live tabs.
func PageOpened() { metricOpenPages.Inc() }

func PageClosed() { metricOpenPages.Dec() }

// MetricsHandler exposes the service registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
