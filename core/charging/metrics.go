package charging

import "github.com/prometheus/client_golang/prometheus"

var (
	chargeSessions  prometheus.Counter
	queueEvictions  prometheus.Counter
	queueAdmissions prometheus.Counter
	waitlistLength  prometheus.Gauge
	stationsInUse   prometheus.Gauge
)

func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Gauge, prometheus.Gauge) {
	sessions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medfleet_charge_sessions_total",
		Help: "Number of charge cycles started",
	})
	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medfleet_charge_queue_evictions_total",
		Help: "Number of vehicles evicted from the charging waitlist after the timeout",
	})
	admissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medfleet_charge_queue_admissions_total",
		Help: "Number of waiting vehicles admitted to a station",
	})
	waiting := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "medfleet_charge_waitlist_length",
		Help: "Vehicles currently waiting for a charging station",
	})
	inUse := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "medfleet_charge_stations_in_use",
		Help: "Charging stations currently occupied",
	})
	return sessions, evictions, admissions, waiting, inUse
}

func init() {
	chargeSessions, queueEvictions, queueAdmissions, waitlistLength, stationsInUse = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers charging metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(chargeSessions, queueEvictions, queueAdmissions, waitlistLength, stationsInUse)
}

// ResetMetrics recreates the collectors and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	chargeSessions, queueEvictions, queueAdmissions, waitlistLength, stationsInUse = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
