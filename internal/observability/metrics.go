package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "runoff_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	SeriesExtracted prometheus.Counter
	SeriesLoaded    prometheus.Counter
	SeriesFailed    *prometheus.CounterVec // labels: stage={read,corrected,discharge,load}
	SamplesDropped  *prometheus.CounterVec // labels: reason={coercion,monotonic}
	StageErrors     *prometheus.CounterVec // labels: stage={corrected_fitted,discharge_fitted,...}
	LoadRetries     prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	TransformDuration       prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SeriesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_extracted_total",
			Help:      "Total sensor series read from the experiment manifest.",
		}),
		SeriesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_loaded_total",
			Help:      "Total series whose derived outputs were written.",
		}),
		SeriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_failed_total",
			Help:      "Series dropped from the run, by failing stage.",
		}, []string{"stage"}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Samples discarded during treatment, by reason.",
		}, []string{"reason"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Non-fatal stage failures inside otherwise successful series.",
		}, []string{"stage"}),
		LoadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_retries_total",
			Help:      "Total retried load attempts.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of series per extracted batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		TransformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Duration of the treatment of a single series.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	prometheus.MustRegister(
		m.SeriesExtracted,
		m.SeriesLoaded,
		m.SeriesFailed,
		m.SamplesDropped,
		m.StageErrors,
		m.LoadRetries,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.TransformDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SeriesExtracted:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "series_extracted_total"}),
		SeriesLoaded:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "series_loaded_total"}),
		SeriesFailed:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "series_failed_total"}, []string{"stage"}),
		SamplesDropped:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "samples_dropped_total"}, []string{"reason"}),
		StageErrors:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "stage_errors_total"}, []string{"stage"}),
		LoadRetries:             prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "load_retries_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		TransformDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "transform_duration_seconds"}),
	}
}
