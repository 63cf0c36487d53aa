package metrics

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/logger"
	coremetrics "github.com/kilianp07/medfleet/core/metrics"
	"github.com/kilianp07/medfleet/core/report"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records fleet events
// on sink until ctx is canceled or the bus is closed. The returned channel
// is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.Nop{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("metrics: record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.DeliveryEvent:
		return sink.RecordDelivery(e)
	case events.ChargeEvent:
		if r, ok := sink.(coremetrics.ChargeRecorder); ok {
			return r.RecordCharge(e)
		}
	case events.TaskEvent:
		if r, ok := sink.(coremetrics.TaskRecorder); ok {
			return r.RecordTask(e)
		}
	}
	return nil
}

// StartSummaryReporter records summarize() on sink every interval until ctx
// is canceled. Sinks without SummaryRecorder support are ignored.
func StartSummaryReporter(ctx context.Context, clk clock.WithTicker, interval time.Duration, summarize func() report.Summary, sink coremetrics.MetricsSink, log logger.Logger) {
	rec, ok := sink.(coremetrics.SummaryRecorder)
	if !ok || summarize == nil || interval <= 0 {
		return
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	t := clk.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C():
				if err := rec.RecordSummary(summarize(), clk.Now()); err != nil {
					log.Warnf("metrics: record summary: %v", err)
				}
			}
		}
	}()
}
