package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/medfleet/core/events"
	coremetrics "github.com/kilianp07/medfleet/core/metrics"
	"github.com/kilianp07/medfleet/core/report"
)

// PromSink keeps per-vehicle and per-SKU series in Prometheus. Aggregate
// counters live next to the dispatcher and the charging coordinator.
type PromSink struct {
	battery        *prometheus.GaugeVec
	deliveredUnits *prometheus.CounterVec
	chargeDuration prometheus.Histogram
	fleetBattery   *prometheus.GaugeVec
	fleetStates    *prometheus.GaugeVec

	mu      sync.Mutex
	started map[string]time.Time
}

// NewPromSink registers the sink collectors on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the sink collectors on reg. Collectors
// already present on reg are reused. A nil reg uses the default registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{started: map[string]time.Time{}}
	battery := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medfleet_vehicle_battery_percent",
		Help: "Last reported battery level per vehicle",
	}, []string{"vehicle_id"})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medfleet_delivered_units_by_sku_total",
		Help: "Units delivered per SKU",
	}, []string{"sku", "origin"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "medfleet_charge_duration_seconds",
		Help:    "Time between plugging in and the end of a charge",
		Buckets: prometheus.ExponentialBuckets(60, 2, 8),
	})
	fleetBattery := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medfleet_fleet_battery_percent",
		Help: "Fleet battery statistics from the last summary",
	}, []string{"stat"})
	fleetStates := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medfleet_fleet_vehicles",
		Help: "Vehicles per charge state from the last summary",
	}, []string{"state"})

	var err error
	if s.battery, err = register(reg, battery); err != nil {
		return nil, err
	}
	if s.deliveredUnits, err = register(reg, delivered); err != nil {
		return nil, err
	}
	if s.chargeDuration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if s.fleetBattery, err = register(reg, fleetBattery); err != nil {
		return nil, err
	}
	if s.fleetStates, err = register(reg, fleetStates); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

var (
	_ coremetrics.MetricsSink     = (*PromSink)(nil)
	_ coremetrics.ChargeRecorder  = (*PromSink)(nil)
	_ coremetrics.SummaryRecorder = (*PromSink)(nil)
)

// RecordDelivery counts delivered units and tracks the vehicle battery.
func (s *PromSink) RecordDelivery(ev events.DeliveryEvent) error {
	s.battery.WithLabelValues(ev.VehicleID).Set(float64(ev.Battery))
	if ev.Err != nil || ev.Quantity <= 0 {
		return nil
	}
	origin := "manual"
	if ev.Auto {
		origin = "auto"
	}
	s.deliveredUnits.WithLabelValues(ev.SKU, origin).Add(float64(ev.Quantity))
	return nil
}

// RecordCharge observes the length of each finished charge.
func (s *PromSink) RecordCharge(ev events.ChargeEvent) error {
	s.battery.WithLabelValues(ev.VehicleID).Set(float64(ev.Battery))
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Action {
	case events.ChargeStarted:
		s.started[ev.VehicleID] = ev.Time
	case events.ChargeFinished:
		if at, ok := s.started[ev.VehicleID]; ok {
			s.chargeDuration.Observe(ev.Time.Sub(at).Seconds())
			delete(s.started, ev.VehicleID)
		}
	}
	return nil
}

func (s *PromSink) RecordSummary(sum report.Summary, _ time.Time) error {
	s.fleetBattery.WithLabelValues("mean").Set(sum.MeanBattery)
	s.fleetBattery.WithLabelValues("min").Set(sum.MinBattery)
	s.fleetBattery.WithLabelValues("max").Set(sum.MaxBattery)
	s.fleetStates.Reset()
	for st, n := range sum.ByState {
		s.fleetStates.WithLabelValues(string(st)).Set(float64(n))
	}
	return nil
}
