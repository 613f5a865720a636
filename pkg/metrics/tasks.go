package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics records background task executions and the dead-letter backlog.
type TaskMetrics struct {
	duration   *prometheus.HistogramVec
	executions *prometheus.CounterVec
	deadLetter prometheus.Gauge
}

// NewTaskMetrics registers the task metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Background task execution time.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"task_name"})
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_executions_total",
		Help: "Total background tasks executed.",
	}, []string{"task_name", "status"})
	deadLetter := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dead_letter_recent_total",
		Help: "Dead-lettered tasks observed in the monitoring window.",
	})
	reg.MustRegister(duration, executions, deadLetter)
	return &TaskMetrics{
		duration:   duration,
		executions: executions,
		deadLetter: deadLetter,
	}
}

// ObserveDuration records the runtime for the named task.
func (m *TaskMetrics) ObserveDuration(taskName string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(taskName)).Observe(duration.Seconds())
}

// IncExecution increments the execution counter for the named task.
func (m *TaskMetrics) IncExecution(taskName, status string) {
	if m == nil || m.executions == nil {
		return
	}
	m.executions.WithLabelValues(normalizeLabel(taskName), normalizeLabel(status)).Inc()
}

// SetDeadLetterRecent records the dead-letter count in the alert window.
func (m *TaskMetrics) SetDeadLetterRecent(count int64) {
	if m == nil || m.deadLetter == nil {
		return
	}
	m.deadLetter.Set(float64(count))
}
