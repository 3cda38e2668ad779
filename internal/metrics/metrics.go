package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_matrix_ai_calls_total",
			Help: "Total number of outbound AI provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	AICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "decision_matrix_ai_call_duration_seconds",
			Help:    "Duration of outbound AI provider calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"provider"},
	)

	AICache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_matrix_ai_cache_total",
			Help: "AI response cache lookups by result",
		},
		[]string{"result"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_matrix_store_operations_total",
			Help: "Decision store operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	EvaluationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "decision_matrix_batch_evaluations_active",
			Help: "Number of batch evaluations currently running",
		},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ObserveAICall records one provider round trip.
func ObserveAICall(provider string, started time.Time, err error) {
	AICallDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
	AICalls.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveStore records one repository operation.
func ObserveStore(op string, err error) {
	StoreOperations.WithLabelValues(op, outcome(err)).Inc()
}

// CacheHit and CacheMiss count cache lookups.
func CacheHit()  { AICache.WithLabelValues("hit").Inc() }
func CacheMiss() { AICache.WithLabelValues("miss").Inc() }

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
