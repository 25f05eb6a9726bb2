// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gains"

// Registry is private to the service so tests can build fresh routers without
// colliding with the global default registry.
var Registry = prometheus.NewRegistry()

var (
	QuoteRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "requests_total",
		Help:      "Price lookups by result (ok, cached, unavailable, no_price, no_token, breaker_open, rate_limited, cancelled).",
	}, []string{"result"})

	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "request_duration_seconds",
		Help:      "Latency of upstream quote requests, retries included.",
		Buckets:   prometheus.DefBuckets,
	})

	Reports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "generated_total",
		Help:      "Gain/loss reports by outcome.",
	}, []string{"outcome"})

	ParseWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "parse_warnings_total",
		Help:      "Trade rows skipped because they could not be parsed.",
	})

	UnavailableLots = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "unavailable_lots_total",
		Help:      "Open lots left out of totals because no price was available.",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(
		QuoteRequests,
		QuoteLatency,
		Reports,
		ParseWarnings,
		UnavailableLots,
		HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
