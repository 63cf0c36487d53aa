package metrics

import (
	"time"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/report"
)

// MetricsSink records completed and failed deliveries.
type MetricsSink interface {
	RecordDelivery(ev events.DeliveryEvent) error
}

// ChargeRecorder records charging state changes.
type ChargeRecorder interface {
	RecordCharge(ev events.ChargeEvent) error
}

// TaskRecorder records task creation and status changes.
type TaskRecorder interface {
	RecordTask(ev events.TaskEvent) error
}

// SummaryRecorder records periodic fleet summaries.
type SummaryRecorder interface {
	RecordSummary(s report.Summary, at time.Time) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDelivery(events.DeliveryEvent) error     { return nil }
func (NopSink) RecordCharge(events.ChargeEvent) error         { return nil }
func (NopSink) RecordTask(events.TaskEvent) error             { return nil }
func (NopSink) RecordSummary(report.Summary, time.Time) error { return nil }
