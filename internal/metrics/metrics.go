package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation labels.
const (
	OperationScan          = "scan"
	OperationDraw          = "draw"
	OperationRedeem        = "redeem"
	OperationGenerateCodes = "generate_codes"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeReject   = "reject"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

var (
	// OperationDuration tracks the latency of reward operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "loyalty_operation_duration_seconds",
			Help: "Duration of reward operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"operation", "outcome"},
	)

	// OperationTotal counts reward operations by outcome
	OperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_operation_total",
			Help: "Number of reward operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// RecordOperation records one finished operation
func RecordOperation(operation, outcome string, duration float64) {
	OperationDuration.WithLabelValues(operation, outcome).Observe(duration)
	OperationTotal.WithLabelValues(operation, outcome).Inc()
}
