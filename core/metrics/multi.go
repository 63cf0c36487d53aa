package metrics

import (
	"errors"
	"time"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/report"
)

// MultiSink fans records out to several sinks. Optional recorders are only
// called on sinks implementing them. Every sink is tried; errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordDelivery(ev events.DeliveryEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordDelivery(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCharge(ev events.ChargeEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ChargeRecorder); ok {
			errs = append(errs, r.RecordCharge(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordTask(ev events.TaskEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TaskRecorder); ok {
			errs = append(errs, r.RecordTask(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSummary(sum report.Summary, at time.Time) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SummaryRecorder); ok {
			errs = append(errs, r.RecordSummary(sum, at))
		}
	}
	return errors.Join(errs...)
}
