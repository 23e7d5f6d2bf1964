package hooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ipcheck/ipcheck/pkg/output/dispatcher"
	"github.com/ipcheck/ipcheck/pkg/output/events"
)

var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook turns lookup events into Prometheus metrics on its own
// registry. Handler serves the registry; the hook starts no server.
type PrometheusHook struct {
	registry *prometheus.Registry

	lookupsTotal    *prometheus.CounterVec
	rejectedTotal   *prometheus.CounterVec
	resultsTotal    *prometheus.CounterVec
	providerSeconds *prometheus.HistogramVec
	lookupSeconds   prometheus.Histogram
	inflight        prometheus.Gauge
}

// PrometheusOptions configures the hook.
type PrometheusOptions struct {
	// Namespace prefixes every metric name (default: "ipcheck").
	Namespace string

	// ProcessMetrics adds the Go runtime and process collectors.
	ProcessMetrics bool
}

// NewPrometheusHook creates the metrics and registers them.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Namespace == "" {
		opts.Namespace = "ipcheck"
	}
	ns := opts.Namespace

	h := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "lookups_total",
			Help:      "Lookups started, by source",
		}, []string{"source"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "lookups_rejected_total",
			Help:      "Lookups refused because the address is not public, by category",
		}, []string{"category"}),
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "provider_results_total",
			Help:      "Provider results, by provider and outcome (data or sentinel score)",
		}, []string{"provider", "outcome"}),
		providerSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "provider_duration_seconds",
			Help:      "Time from lookup start to a provider's result",
			Buckets:   []float64{1, 2, 3, 5, 8, 12, 17, 25, 40},
		}, []string{"provider"}),
		lookupSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "lookup_duration_seconds",
			Help:      "Time until every provider reported",
			Buckets:   []float64{2, 5, 10, 15, 20, 30, 45, 60},
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "lookups_inflight",
			Help:      "Lookups currently scraping",
		}),
	}

	cs := []prometheus.Collector{
		h.lookupsTotal,
		h.rejectedTotal,
		h.resultsTotal,
		h.providerSeconds,
		h.lookupSeconds,
		h.inflight,
	}
	if opts.ProcessMetrics {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := h.registry.Register(c); err != nil {
			return nil, fmt.Errorf("prometheus: register: %w", err)
		}
	}
	return h, nil
}

// OnEvent updates the metrics.
func (h *PrometheusHook) OnEvent(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.StartEvent:
		h.lookupsTotal.WithLabelValues(e.Source).Inc()
		h.inflight.Inc()
	case *events.PartialEvent:
		h.resultsTotal.WithLabelValues(string(e.Provider), e.Result.Outcome()).Inc()
		h.providerSeconds.WithLabelValues(string(e.Provider)).Observe(e.DurationMs / 1000)
	case *events.CompleteEvent:
		h.lookupSeconds.Observe(e.DurationMs / 1000)
		h.inflight.Dec()
	case *events.RejectedEvent:
		h.rejectedTotal.WithLabelValues(e.Category).Inc()
	}
	return nil
}

// EventTypes returns nil: every lookup event updates some metric.
func (h *PrometheusHook) EventTypes() []events.EventType { return nil }

// Registry exposes the registry, mainly for tests.
func (h *PrometheusHook) Registry() *prometheus.Registry { return h.registry }

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
