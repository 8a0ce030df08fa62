// Package metrics exposes Prometheus instruments for the HTTP surface and
// the render engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alnah/vulcan"
)

// Namespace prefixes every metric name.
const Namespace = "vulcan"

// renderBuckets covers fast in-memory renders up to the default 30s deadline.
var renderBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}

// HTTPMetrics captures request metrics for the API.
type HTTPMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements HTTPMetrics and vulcan.RenderObserver without emitting anything.
type Noop struct{}

func (Noop) ObserveRequest(string, string, string, float64) {}
func (Noop) ObserveRender(string, float64)                  {}
func (Noop) ObserveQueueWait(float64)                       {}
func (Noop) SessionsInUse(int)                              {}

var (
	_ HTTPMetrics           = Noop{}
	_ vulcan.RenderObserver = Noop{}
	_ HTTPMetrics           = (*Prom)(nil)
	_ vulcan.RenderObserver = (*Prom)(nil)
)

// Prom implements HTTPMetrics and vulcan.RenderObserver on a private registry.
type Prom struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	renders   *prometheus.CounterVec
	renderDur *prometheus.HistogramVec
	queueWait prometheus.Histogram
	sessions  prometheus.Gauge
	poolSize  prometheus.Gauge
}

// NewProm creates the instruments and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func NewProm(poolSize int) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "renders_total",
			Help:      "Render jobs by outcome",
		}, []string{"outcome"}),
		renderDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "render_duration_seconds",
			Help:      "Render job duration by outcome, including queueing and persistence",
			Buckets:   renderBuckets,
		}, []string{"outcome"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "session_wait_seconds",
			Help:      "Time spent waiting for a browser session",
			Buckets:   renderBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_in_use",
			Help:      "Browser sessions currently rendering",
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "session_pool_size",
			Help:      "Maximum concurrent browser sessions",
		}),
	}

	p.registry.MustRegister(
		p.requests, p.latency,
		p.renders, p.renderDur, p.queueWait, p.sessions, p.poolSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p.poolSize.Set(float64(poolSize))
	return p
}

func (p *Prom) ObserveRequest(method, route, status string, durationSeconds float64) {
	p.requests.WithLabelValues(method, route, status).Inc()
	p.latency.WithLabelValues(method, route).Observe(durationSeconds)
}

func (p *Prom) ObserveRender(outcome string, seconds float64) {
	p.renders.WithLabelValues(outcome).Inc()
	p.renderDur.WithLabelValues(outcome).Observe(seconds)
}

func (p *Prom) ObserveQueueWait(seconds float64) {
	p.queueWait.Observe(seconds)
}

func (p *Prom) SessionsInUse(delta int) {
	p.sessions.Add(float64(delta))
}

// Registry returns the underlying registry.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler serving the registry.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
