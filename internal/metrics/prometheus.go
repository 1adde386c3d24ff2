package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportgenie_chat_requests_total",
			Help: "Total chat requests by outcome",
		},
		[]string{"status"},
	)

	ChatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supportgenie_chat_duration_seconds",
			Help:    "Chat turn processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	Escalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportgenie_escalations_total",
			Help: "Total chat turns flagged for human follow-up",
		},
	)

	ProviderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportgenie_provider_failures_total",
			Help: "Completion provider failures by kind",
		},
		[]string{"kind"},
	)

	FallbackReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportgenie_fallback_replies_total",
			Help: "Chat turns answered with the fallback apology",
		},
	)

	KnowledgeUploads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportgenie_knowledge_uploads_total",
			Help: "Knowledge base documents uploaded",
		},
	)

	KnowledgeUploadsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportgenie_knowledge_uploads_rejected_total",
			Help: "Knowledge base uploads rejected at the boundary",
		},
		[]string{"reason"},
	)

	KnowledgeDeletes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supportgenie_knowledge_deletes_total",
			Help: "Knowledge base documents deleted",
		},
	)

	AnalyticsSnapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportgenie_analytics_snapshots_total",
			Help: "Analytics snapshots served, by source",
		},
		[]string{"source"},
	)

	ActiveWebsockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportgenie_active_websockets",
			Help: "Currently open websocket chat connections",
		},
	)
)

func Init() {
	prometheus.MustRegister(ChatRequests)
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(Escalations)
	prometheus.MustRegister(ProviderFailures)
	prometheus.MustRegister(FallbackReplies)
	prometheus.MustRegister(KnowledgeUploads)
	prometheus.MustRegister(KnowledgeUploadsRejected)
	prometheus.MustRegister(KnowledgeDeletes)
	prometheus.MustRegister(AnalyticsSnapshots)
	prometheus.MustRegister(ActiveWebsockets)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
