package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the stream lifecycle engine: operation
// counts and outcomes, value moved through claims and settlements, and
// critical-path durations.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationFailures *prometheus.CounterVec
	ClaimedOctas      prometheus.Counter
	SettledOctas      *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// New registers all stream engine metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streampay_operations_total",
			Help: "Total lifecycle operations by kind",
		}, []string{"op"}),
		OperationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streampay_operation_failures_total",
			Help: "Failed lifecycle operations by kind",
		}, []string{"op"}),
		ClaimedOctas: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streampay_claimed_octas_total",
			Help: "Total octas released to recipients through claims",
		}),
		SettledOctas: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streampay_settled_octas_total",
			Help: "Total octas settled on cancellation by receiving side",
		}, []string{"side"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streampay_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

// ObserveOperation records one completed operation with its outcome and
// duration. Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op).Inc()
	if err != nil {
		m.OperationFailures.WithLabelValues(op).Inc()
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// AddClaimed records octas released by a claim.
func (m *Metrics) AddClaimed(octas uint64) {
	if m == nil {
		return
	}
	m.ClaimedOctas.Add(float64(octas))
}

// AddSettled records octas paid out on cancellation for one side, either
// "sender" or "recipient".
func (m *Metrics) AddSettled(side string, octas uint64) {
	if m == nil {
		return
	}
	m.SettledOctas.WithLabelValues(side).Add(float64(octas))
}
