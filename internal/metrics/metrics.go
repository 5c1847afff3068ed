package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExplanationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesense_explanations_total",
		Help: "Explanation attempts by terminal audit mode",
	}, []string{"mode"})

	RedactionFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesense_redaction_findings_total",
		Help: "Redacted matches by rule",
	}, []string{"rule"})

	CompletionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codesense_completion_latency_seconds",
		Help:    "Completion call latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	}, []string{"model"})

	CompletionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesense_completion_failures_total",
		Help: "Failed completion calls by failure kind",
	}, []string{"kind"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesense_cache_lookups_total",
		Help: "Response cache lookups by result (hit, miss)",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesense_http_requests_total",
		Help: "HTTP API requests by route and status",
	}, []string{"route", "status"})
)
