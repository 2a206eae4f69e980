package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TranslationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmt_translations_total",
			Help: "Total number of translations by outcome",
		},
		[]string{"status"},
	)

	TranslationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nmt_translation_duration_seconds",
			Help:    "Wall-clock duration of single translations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nmt_batch_size",
			Help:    "Number of texts per batch translation request",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmt_cache_lookups_total",
			Help: "Translation cache lookups by result",
		},
		[]string{"result"},
	)

	ModelReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nmt_model_ready",
			Help: "1 when the translation model is loaded and serving",
		},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmt_model_load_attempts_total",
			Help: "Model load attempts by candidate and outcome",
		},
		[]string{"candidate", "status"},
	)
)
