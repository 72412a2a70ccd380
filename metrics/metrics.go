package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Webhook intake
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Webhook updates by intake status",
		},
		[]string{"status"},
	)

	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by source kind and outcome",
		},
		[]string{"source", "outcome"},
	)

	ImagesResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_images_resolved_total",
			Help: "Draft images by origin",
		},
		[]string{"origin"},
	)

	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_publishes_total",
			Help: "Publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"channel", "llm_provider"},
	)
)

// Init records static application labels.
func Init(channel, provider string) {
	ApplicationInfo.WithLabelValues(channel, provider).Set(1)
}
