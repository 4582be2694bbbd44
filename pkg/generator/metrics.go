package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricNameGeneratedCables    = "hhplan_generated_cables_total"
	MetricNameGenerationFailures = "hhplan_generation_failures_total"
	MetricNameGenerationDuration = "hhplan_generation_duration_seconds"

	MetricLabelPlan   = "plan"
	MetricLabelReason = "reason"
)

// Metrics holds the generator's Prometheus collectors
type Metrics struct {
	GeneratedCables    *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
}

// NewMetrics creates generator metrics registered with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GeneratedCables: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricNameGeneratedCables,
			Help: "Total number of cables generated",
		}, []string{MetricLabelPlan}),
		GenerationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: MetricNameGenerationFailures,
			Help: "Total number of failed generation runs",
		}, []string{MetricLabelReason}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricNameGenerationDuration,
			Help:    "Time spent generating a plan",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
