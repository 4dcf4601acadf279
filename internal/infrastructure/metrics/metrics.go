package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1v1expert/AnalogPro/internal/domain"
	"github.com/1v1expert/AnalogPro/internal/infrastructure/cache"
)

// Metrics holds Prometheus metrics for analog resolution.
// It satisfies usecase.Observer.
type Metrics struct {
	Resolutions        *prometheus.CounterVec   // by outcome
	ResolutionDuration *prometheus.HistogramVec // by outcome
	PipelineSurvivors  prometheus.Histogram     // HARD-stage candidates per successful run
	ShortCircuits      prometheus.Counter
	HealthCheckPairs   *prometheus.CounterVec // by status
	HealthCheckRuns    prometheus.Counter
}

// NewMetrics creates and registers the resolver metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analogpro_resolutions_total",
			Help: "Analog resolutions by outcome",
		}, []string{"outcome"}),
		ResolutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analogpro_resolution_duration_seconds",
			Help:    "Time spent resolving one analog",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
		PipelineSurvivors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analogpro_pipeline_hard_stage_candidates",
			Help:    "Candidates left after the HARD stage of a successful pipeline run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ShortCircuits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analogpro_pipeline_short_circuits_total",
			Help: "Pipeline runs that stopped early with a single candidate",
		}),
		HealthCheckPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analogpro_healthcheck_pairs_total",
			Help: "Health-check product/manufacturer pairs by status",
		}, []string{"status"}),
		HealthCheckRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analogpro_healthcheck_runs_total",
			Help: "Completed health-check runs",
		}),
	}

	reg.MustRegister(
		m.Resolutions,
		m.ResolutionDuration,
		m.PipelineSurvivors,
		m.ShortCircuits,
		m.HealthCheckPairs,
		m.HealthCheckRuns,
	)
	return m
}

// ObserveResolution records one Resolve call
func (m *Metrics) ObserveResolution(outcome string, elapsed time.Duration) {
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObservePipeline records one successful pipeline run
func (m *Metrics) ObservePipeline(result *domain.PipelineResult) {
	m.PipelineSurvivors.Observe(float64(len(result.HardStage)))
	if result.ShortCircuited {
		m.ShortCircuits.Inc()
	}
}

// ObserveHealthCheck records a finished batch run
func (m *Metrics) ObserveHealthCheck(report *domain.HealthCheckReport) {
	m.HealthCheckRuns.Inc()
	m.HealthCheckPairs.WithLabelValues(string(domain.PairFound)).Add(float64(report.Found))
	m.HealthCheckPairs.WithLabelValues(string(domain.PairNotFound)).Add(float64(report.NotFound))
	m.HealthCheckPairs.WithLabelValues(string(domain.PairFailed)).Add(float64(report.Failed))
}

// RegisterCache exposes the schema cache counters on reg
func RegisterCache(reg prometheus.Registerer, stats func() cache.Stats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "analogpro_schema_cache_items",
			Help: "Entries held by the schema cache",
		}, func() float64 { return float64(stats().Items) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "analogpro_schema_cache_hits_total",
			Help: "Schema cache hits",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "analogpro_schema_cache_misses_total",
			Help: "Schema cache misses",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "analogpro_schema_cache_evictions_total",
			Help: "Schema cache evictions",
		}, func() float64 { return float64(stats().Evictions) }),
	)
}
