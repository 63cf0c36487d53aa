// Package eventlog writes operator log lines to the component logger and
// republishes each of them on a typed event bus so the metrics collector and
// other listeners can follow the fleet without parsing log output.
package eventlog

import (
	"k8s.io/utils/clock"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/logger"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

// Log implements sink.EventLog. It never blocks on listeners and never panics.
type Log struct {
	log logger.Logger
	bus *eventbus.TypedBus[events.LogEvent]
	clk clock.PassiveClock
}

// New returns a Log. A nil bus only logs; a nil clock uses wall time.
func New(log logger.Logger, bus *eventbus.TypedBus[events.LogEvent], clk clock.PassiveClock) *Log {
	if log == nil {
		log = logger.Nop{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Log{log: log, bus: bus, clk: clk}
}

func (l *Log) LogVehicle(name, message string) {
	l.emit(events.ChannelVehicle, name, message)
}

func (l *Log) LogCharging(label, message string) {
	l.emit(events.ChannelCharging, label, message)
}

func (l *Log) LogSystem(message string) {
	l.emit(events.ChannelSystem, "", message)
}

func (l *Log) emit(ch events.Channel, subject, message string) {
	// A broken writer must not take the caller down with it.
	defer func() { _ = recover() }()
	if subject == "" {
		l.log.Infof("[%s] %s", ch, message)
	} else {
		l.log.Infof("[%s] %s: %s", ch, subject, message)
	}
	if l.bus != nil {
		l.bus.Publish(events.LogEvent{Channel: ch, Subject: subject, Message: message, Time: l.clk.Now()})
	}
}
