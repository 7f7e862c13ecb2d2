package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claimy/claimy-admin/internal/desk"
)

const namespace = "claimy_admin"

// Metrics owns the service's collectors and the registry they live in.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	syncCases       *prometheus.CounterVec
	syncRuns        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		syncCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_sync_cases_total",
			Help:      "Cases reconciled by mail sync runs, by outcome.",
		}, []string{"outcome"}),
		syncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_sync_runs_total",
			Help:      "Completed mail sync runs.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.syncCases,
		m.syncRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records one sample per request, labelled with the matched
// route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.With(prometheus.Labels{
			"route":  route,
			"method": method,
			"status": strconv.Itoa(c.Writer.Status()),
		}).Inc()
		m.requestDuration.With(prometheus.Labels{
			"route":  route,
			"method": method,
		}).Observe(time.Since(start).Seconds())
	}
}

// ObserveSync counts the outcome of a mail sync run.
func (m *Metrics) ObserveSync(result desk.SyncResult) {
	m.syncRuns.Inc()
	m.syncCases.With(prometheus.Labels{"outcome": "synced"}).Add(float64(result.Synced))
	m.syncCases.With(prometheus.Labels{"outcome": "failed"}).Add(float64(result.Failed))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
