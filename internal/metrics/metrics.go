package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration 按操作与结果类别统计券码核心操作耗时
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "couponbook_operation_duration_seconds",
			Help: "Duration of coupon code operations in seconds",
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05,
				0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
			},
		},
		[]string{"operation", "status"},
	)

	// SweptLocksTotal 过期锁回收累计行数
	SweptLocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "couponbook_swept_locks_total",
			Help: "Total number of expired code locks cleared by the sweeper",
		},
	)
)

// ObserveOperation 记录一次操作的耗时与结果类别
func ObserveOperation(operation, status string, seconds float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(seconds)
}

// AddSweptLocks 累加一次回收清除的锁数量
func AddSweptLocks(count int64) {
	if count <= 0 {
		return
	}
	SweptLocksTotal.Add(float64(count))
}
