// Package metrics exposes the engine's Prometheus collectors.
//
// Collectors are usable before Register is called; Register only attaches
// them to the default registry served at /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quant"

var (
	once sync.Once

	AnalysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "analysis_duration_seconds",
			Help:      "Latency of fused analyses",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "decisions_total",
			Help:      "Fused decisions by direction and executability",
		},
		[]string{"direction", "executable"},
	)

	EstimatorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "estimator_failures_total",
			Help:      "Strategy or predictor calls replaced by a fallback",
		},
		[]string{"estimator", "reason"},
	)

	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fusion",
			Name:      "cache_requests_total",
			Help:      "Decision cache lookups by result",
		},
		[]string{"result"},
	)

	RiskScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "overall_score",
			Help:      "Most recent overall portfolio risk score",
		},
	)

	RiskFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "fallback_reports_total",
			Help:      "Risk assessments that returned the fallback report",
		},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open",
			Help:      "Positions not yet closed",
		},
	)

	ClosedPositions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "closed_total",
			Help:      "Closed positions by exit reason",
		},
		[]string{"reason"},
	)

	RealizedPL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "realized_pl",
			Help:      "Cumulative realized profit and loss",
		},
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Notification publishes that failed",
		},
		[]string{"publisher", "event"},
	)
)

// Register attaches every collector to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysisLatency,
			Decisions,
			EstimatorFailures,
			CacheRequests,
			RiskScore,
			RiskFallbacks,
			OpenPositions,
			ClosedPositions,
			RealizedPL,
			SinkFailures,
		)
	})
}
