package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Relay collects per-outcome counters for the analysis relay. A nil *Relay
// is valid and records nothing.
type Relay struct {
	registry  *prometheus.Registry
	outcomes  *prometheus.CounterVec
	upstream  *prometheus.HistogramVec
	uploadLen prometheus.Histogram
}

func NewRelay() *Relay {
	reg := prometheus.NewRegistry()
	r := &Relay{
		registry: reg,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mathlens",
			Name:      "analyze_requests_total",
			Help:      "Analysis requests by terminal outcome.",
		}, []string{"outcome"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mathlens",
			Name:      "engine_call_seconds",
			Help:      "Latency of external model calls.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		}, []string{"engine", "result"}),
		uploadLen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mathlens",
			Name:      "upload_bytes",
			Help:      "Size of accepted uploads.",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
		}),
	}
	reg.MustRegister(
		r.outcomes, r.upstream, r.uploadLen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Relay) Outcome(outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(outcome).Inc()
}

func (r *Relay) EngineCall(engine string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.upstream.WithLabelValues(engine, result).Observe(d.Seconds())
}

func (r *Relay) Upload(size int64) {
	if r == nil {
		return
	}
	r.uploadLen.Observe(float64(size))
}

func (r *Relay) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
