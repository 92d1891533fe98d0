package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "conductor"

// Metrics holds the orchestrator's Prometheus instruments.
type Metrics struct {
	taskDuration *prometheus.HistogramVec
	taskFailures *prometheus.CounterVec
	taskRetries  *prometheus.CounterVec
	activeTasks  prometheus.Gauge
	approvals    *prometheus.CounterVec
}

// MustNewMetrics registers the orchestrator instruments on reg and panics on
// duplicate registration. Pass nil to collect into a throwaway registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of task executions.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"role", "status"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "task_failures_total",
			Help:      "Task executions that ended in failure.",
		}, []string{"role"}),
		taskRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "task_retries_total",
			Help:      "Failed tasks requeued for another attempt.",
		}, []string{"role"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_tasks",
			Help:      "Tasks currently executing.",
		}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "approvals_total",
			Help:      "Approval gate decisions by outcome.",
		}, []string{"decision"}),
	}

	reg.MustRegister(m.taskDuration, m.taskFailures, m.taskRetries, m.activeTasks, m.approvals)
	return m
}

func (m *Metrics) observeTask(role, status string, seconds float64) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(role, status).Observe(seconds)
}

func (m *Metrics) incFailure(role string) {
	if m == nil {
		return
	}
	m.taskFailures.WithLabelValues(role).Inc()
}

func (m *Metrics) incRetry(role string) {
	if m == nil {
		return
	}
	m.taskRetries.WithLabelValues(role).Inc()
}

func (m *Metrics) taskStarted() {
	if m == nil {
		return
	}
	m.activeTasks.Inc()
}

func (m *Metrics) taskFinished() {
	if m == nil {
		return
	}
	m.activeTasks.Dec()
}

func (m *Metrics) incApproval(decision string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(decision).Inc()
}
