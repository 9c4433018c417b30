// Package metrics registers the monitor's Prometheus instruments, generalizing
// the teacher engine's monitoring.PrometheusExporter from crawl-business
// metrics to probe/store/stats metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every instrument the monitor emits.
type Registry struct {
	reg *prometheus.Registry

	ProbesTotal          *prometheus.CounterVec
	ProbeLatencyMs       *prometheus.HistogramVec
	StoreWriteFailures   prometheus.Counter
	StatsPassDuration    prometheus.Histogram
	ChosenWindowGauge    *prometheus.GaugeVec
	RetentionSweptTotal  prometheus.Counter
	PublicIPFetchFailure prometheus.Counter
}

// New constructs a Registry with all instruments registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icmpmon_probes_total",
			Help: "Total probes issued, labeled by target and outcome.",
		}, []string{"target_id", "outcome"}),
		ProbeLatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "icmpmon_probe_latency_ms",
			Help:    "Observed probe latency in milliseconds for successful probes.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"target_id"}),
		StoreWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icmpmon_store_write_failures_total",
			Help: "Transient Store write failures absorbed without propagating.",
		}),
		StatsPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "icmpmon_stats_pass_duration_seconds",
			Help:    "Duration of a single Stats Engine pass (retention sweep + recompute).",
			Buckets: prometheus.DefBuckets,
		}),
		ChosenWindowGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "icmpmon_chosen_window",
			Help: "1 for the currently chosen window of a target, labeled by window name.",
		}, []string{"target_id", "window"}),
		RetentionSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icmpmon_retention_swept_rows_total",
			Help: "Rows deleted by the retention sweep.",
		}),
		PublicIPFetchFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icmpmon_public_ip_fetch_failures_total",
			Help: "Public IP discovery attempts that degraded to Unknown.",
		}),
	}
	reg.MustRegister(
		r.ProbesTotal,
		r.ProbeLatencyMs,
		r.StoreWriteFailures,
		r.StatsPassDuration,
		r.ChosenWindowGauge,
		r.RetentionSweptTotal,
		r.PublicIPFetchFailure,
	)
	return r
}

// Handler returns the HTTP handler to serve /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
