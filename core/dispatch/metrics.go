package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tasksCreated   *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	resumeAttempts *prometheus.CounterVec
	leftoverUnits  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter) {
	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfleet_tasks_created_total",
			Help: "Number of tasks created",
		},
		[]string{"origin"},
	)
	del := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfleet_deliveries_total",
			Help: "Number of delivery simulations by outcome",
		},
		[]string{"origin", "outcome"},
	)
	resume := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medfleet_resume_attempts_total",
			Help: "Number of auto-distribution resume attempts by outcome",
		},
		[]string{"outcome"},
	)
	left := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medfleet_leftover_units_total",
			Help: "Units left unassigned at the end of an auto-distribution pass",
		},
	)
	return tasks, del, resume, left
}

func init() {
	tasksCreated, deliveries, resumeAttempts, leftoverUnits = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tasksCreated, deliveries, resumeAttempts, leftoverUnits)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	tasksCreated, deliveries, resumeAttempts, leftoverUnits = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
