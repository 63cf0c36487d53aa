package eventlog

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/sink"
	infralogger "github.com/kilianp07/medfleet/infra/logger"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

var _ sink.EventLog = (*Log)(nil)

func TestLogPublishesEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakePassiveClock(now)
	bus := eventbus.NewTyped[events.LogEvent]()
	sub := bus.Subscribe()
	var buf bytes.Buffer
	l := New(infralogger.NewWithWriter("events", &buf, "info"), bus, clk)

	l.LogVehicle("Alpha", "Battery drop after manual delivery: 20% -> 15%")
	l.LogCharging("QUEUE", "Alpha waiting (900 sec left)")
	l.LogSystem("Auto-distribution started")

	got := make([]events.LogEvent, 0, 3)
	for i := 0; i < 3; i++ {
		got = append(got, <-sub)
	}
	assert.Equal(t, events.ChannelVehicle, got[0].Channel)
	assert.Equal(t, "Alpha", got[0].Subject)
	assert.Equal(t, events.ChannelCharging, got[1].Channel)
	assert.Equal(t, "QUEUE", got[1].Subject)
	assert.Equal(t, events.ChannelSystem, got[2].Channel)
	assert.Empty(t, got[2].Subject)
	for _, e := range got {
		assert.Equal(t, now, e.Time)
	}
	assert.Contains(t, buf.String(), "[vehicle] Alpha: Battery drop")
	assert.Contains(t, buf.String(), "[system] Auto-distribution started")
}

type panicLogger struct{ infralogger.NopLogger }

func (panicLogger) Infof(string, ...any) { panic("disk full") }

func TestLogSwallowsFailures(t *testing.T) {
	l := New(panicLogger{}, nil, nil)
	require.NotPanics(t, func() { l.LogSystem("hello") })
}

func TestLogWithoutBus(t *testing.T) {
	l := New(nil, nil, nil)
	require.NotPanics(t, func() {
		l.LogVehicle("Alpha", "ok")
		l.LogCharging("Default_Station_1", "ok")
	})
}
