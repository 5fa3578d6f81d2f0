// Package metrics exposes Prometheus instruments for timelock activity.
//
// A nil *Metrics is valid and records nothing, so the engine can call the
// recording methods unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timelock"

// Metrics holds the timelock's counters and gauges.
type Metrics struct {
	scheduled  prometheus.Counter
	cancelled  prometheus.Counter
	executed   prometheus.Counter
	calls      *prometheus.CounterVec
	rejections *prometheus.CounterVec
	minDelay   prometheus.Gauge
}

// New creates the instruments and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "scheduled_total",
			Help:      "Operations scheduled",
		}),
		cancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "cancelled_total",
			Help:      "Operations cancelled",
		}),
		executed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "executed_total",
			Help:      "Operations executed to Done",
		}),
		// Labels: result (ok, failed)
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "Calls dispatched during execute by result",
		}, []string{"result"}),
		// Labels: code (error code of the rejection)
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "rejections_total",
			Help:      "Entry point calls rejected by error code",
		}, []string{"code"}),
		minDelay: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "min_delay_seconds",
			Help:      "Current minimum delay",
		}),
	}
}

// Scheduled records one scheduled operation.
func (m *Metrics) Scheduled() {
	if m == nil {
		return
	}
	m.scheduled.Inc()
}

// Cancelled records one cancelled operation.
func (m *Metrics) Cancelled() {
	if m == nil {
		return
	}
	m.cancelled.Inc()
}

// Executed records one operation that reached Done.
func (m *Metrics) Executed() {
	if m == nil {
		return
	}
	m.executed.Inc()
}

// CallDispatched records one dispatched call.
func (m *Metrics) CallDispatched(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.calls.WithLabelValues(result).Inc()
}

// Rejected records a rejected entry point call.
func (m *Metrics) Rejected(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
}

// SetMinDelay publishes the current minimum delay.
func (m *Metrics) SetMinDelay(seconds uint64) {
	if m == nil {
		return
	}
	m.minDelay.Set(float64(seconds))
}
