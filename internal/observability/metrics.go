package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and dispatch flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	emailsSentTotal     *prometheus.CounterVec
	emailsFailedTotal   *prometheus.CounterVec
	sendDuration        *prometheus.HistogramVec
	dispatchInflight    prometheus.Gauge
	retryScheduledTotal *prometheus.CounterVec
	sendsCreatedTotal   *prometheus.CounterVec
	schedulerRunsTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dripmail",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dripmail",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		emailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dripmail",
				Name:      "emails_sent_total",
				Help:      "Total number of emails delivered successfully.",
			},
			[]string{"template"},
		),
		emailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dripmail",
				Name:      "emails_failed_total",
				Help:      "Total number of sends that ended in failed state.",
			},
			[]string{"template", "reason"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dripmail",
				Name:      "send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by template.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"template"},
		),
		dispatchInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dripmail",
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight delivery attempts.",
			},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dripmail",
				Name:      "retry_scheduled_total",
				Help:      "Total number of sends scheduled for retry.",
			},
			[]string{"template"},
		),
		sendsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dripmail",
				Name:      "sends_created_total",
				Help:      "Total number of pending sends created by the scheduler.",
			},
			[]string{"template"},
		),
		schedulerRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dripmail",
				Name:      "scheduler_runs_total",
				Help:      "Total number of completed scheduler passes.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.emailsSentTotal,
		m.emailsFailedTotal,
		m.sendDuration,
		m.dispatchInflight,
		m.retryScheduledTotal,
		m.sendsCreatedTotal,
		m.schedulerRunsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEmailSent(template string) {
	if m == nil {
		return
	}
	m.emailsSentTotal.WithLabelValues(normalizeTemplate(template)).Inc()
}

func (m *Metrics) IncEmailFailed(template string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.emailsFailedTotal.WithLabelValues(normalizeTemplate(template), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(template string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeTemplate(template)).Observe(seconds)
}

func (m *Metrics) IncDispatchInFlight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Inc()
}

func (m *Metrics) DecDispatchInFlight() {
	if m == nil {
		return
	}
	m.dispatchInflight.Dec()
}

func (m *Metrics) IncRetryScheduled(template string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeTemplate(template)).Inc()
}

func (m *Metrics) IncSendCreated(template string) {
	if m == nil {
		return
	}
	m.sendsCreatedTotal.WithLabelValues(normalizeTemplate(template)).Inc()
}

func (m *Metrics) IncSchedulerRun() {
	if m == nil {
		return
	}
	m.schedulerRunsTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeTemplate(template string) string {
	normalized := strings.ToLower(strings.TrimSpace(template))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
