package nestedset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "mptt"

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: "engine",
	Name:      "operations_total",
	Help:      "Number of engine operations by kind and outcome",
}, []string{"op", "status"})

var operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: Namespace,
	Subsystem: "engine",
	Name:      "operation_duration_seconds",
	Help:      "Duration of engine operations, including lock waits",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
}, []string{"op"})

var rowsShifted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: "engine",
	Name:      "rows_shifted_total",
	Help:      "Number of rows renumbered by bulk shifts",
}, []string{"op"})

var treesRebuilt = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: "engine",
	Name:      "trees_rebuilt_total",
	Help:      "Number of trees renumbered by rebuild",
})

var noopMoves = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: Namespace,
	Subsystem: "engine",
	Name:      "noop_moves_total",
	Help:      "Number of moves whose destination was the current position",
})
