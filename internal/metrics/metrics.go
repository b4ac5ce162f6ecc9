package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the quiz-generation collectors.
type Metrics struct {
	GenerationsTotal   *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	ModelLatency       prometheus.Histogram
}

// New registers and returns the generation collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_generations_total",
			Help: "Successful quiz generations by source (cache, generated).",
		}, []string{"source"}),
		GenerationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_generation_failures_total",
			Help: "Failed quiz generations by reason.",
		}, []string{"reason"}),
		ModelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_model_call_duration_seconds",
			Help:    "Latency of generative-model calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
	reg.MustRegister(m.GenerationsTotal, m.GenerationFailures, m.ModelLatency)
	return m
}
