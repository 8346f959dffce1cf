// Package metrics exposes run counters in the Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flowprobe/flowprobe/internal/oracle"
)

const DefaultFile = "metrics.prom"

// Recorder owns a private registry so parallel runs (and tests) do not share
// counters.
type Recorder struct {
	registry   *prometheus.Registry
	variants   *prometheus.CounterVec
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	expansions prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		variants: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowprobe_variants_total",
			Help: "Evaluated candidate variants by verdict category.",
		}, []string{"category"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowprobe_detector_runs_total",
			Help: "Detector invocations by case side and verdict.",
		}, []string{"side", "verdict"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowprobe_detector_duration_seconds",
			Help:    "Wall time of one detector invocation.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		expansions: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowprobe_expansions_total",
			Help: "Candidates pushed back onto the search frontier.",
		}),
	}
}

// ObserveVariant records one evaluated candidate.
func (r *Recorder) ObserveVariant(v oracle.Verdicts, pos, neg oracle.Outcome, expanded bool) {
	r.variants.WithLabelValues(string(v.Category())).Inc()
	r.runs.WithLabelValues("pos", string(v.Pos)).Inc()
	r.runs.WithLabelValues("neg", string(v.Neg)).Inc()
	r.duration.Observe(pos.Duration.Seconds())
	r.duration.Observe(neg.Duration.Seconds())
	if expanded {
		r.expansions.Inc()
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
