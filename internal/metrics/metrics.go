// Package metrics holds the Prometheus collectors of the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	storeCalls      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	secretFailures  prometheus.Counter
	syncPublished   *prometheus.CounterVec
	suspicious      *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moneymanager_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymanager_http_requests_total",
				Help: "Total HTTP requests by route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		storeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymanager_store_calls_total",
				Help: "Transaction store calls by operation and result.",
			},
			[]string{"operation", "result"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymanager_cache_lookups_total",
				Help: "Transaction cache lookups by result.",
			},
			[]string{"result"},
		),
		secretFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "moneymanager_secret_failures_total",
				Help: "Updates rejected for a wrong shared secret.",
			},
		),
		syncPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymanager_sync_published_total",
				Help: "Sync messages published to the broker by result.",
			},
			[]string{"result"},
		),
		suspicious: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymanager_http_suspicious_requests_total",
				Help: "Requests rejected by the request screen, by reason.",
			},
			[]string{"reason"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneymanager_http_rate_limited_total",
				Help: "Requests refused by a limiter, by limiter.",
			},
			[]string{"limiter"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// RecordStoreCall counts one store operation as "ok" or "error".
func (m *Metrics) RecordStoreCall(operation string, err error) {
	m.storeCalls.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) IncrCacheHit()  { m.cacheLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) IncrCacheMiss() { m.cacheLookups.WithLabelValues("miss").Inc() }

func (m *Metrics) IncrSecretFailure() { m.secretFailures.Inc() }

func (m *Metrics) RecordPublish(err error) {
	m.syncPublished.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) IncrSuspicious(reason string) { m.suspicious.WithLabelValues(reason).Inc() }

// IncrRateLimited counts a refusal by the "mutations" or "pin" limiter.
func (m *Metrics) IncrRateLimited(limiter string) { m.rateLimited.WithLabelValues(limiter).Inc() }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
