// Package charging owns charging-station occupancy and the FIFO waitlist of
// vehicles waiting for a station.
//
// Occupancy changes, waitlist admission and timeout eviction all happen under
// one coordinator-wide lock, so two admissions can never see the same station
// as free.
package charging

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/logger"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/repository"
	"github.com/kilianp07/medfleet/core/sink"
	"github.com/kilianp07/medfleet/core/vehicle"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

// DefaultQueueTimeout is the soft wait limit evaluated on each scan.
const DefaultQueueTimeout = 15 * time.Minute

// QueueLabel is the subject used for waitlist entries in the event log.
const QueueLabel = "QUEUE"

// Config tunes the coordinator.
type Config struct {
	QueueTimeout time.Duration
}

// Coordinator assigns vehicles to stations or queues them.
type Coordinator struct {
	stations *repository.Store[*model.ChargingStation]
	clk      clock.Clock
	events   sink.EventLog
	log      logger.Logger
	bus      eventbus.EventBus
	timeout  time.Duration

	mu   sync.Mutex
	wait waitlist
}

// NewCoordinator returns a coordinator over the given station store. A nil
// store starts empty; nil collaborators fall back to no-ops and the real
// clock.
func NewCoordinator(stations *repository.Store[*model.ChargingStation], cfg Config, clk clock.Clock, ev sink.EventLog, log logger.Logger, bus eventbus.EventBus) *Coordinator {
	if stations == nil {
		stations = repository.NewStore[*model.ChargingStation]()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if ev == nil {
		ev = sink.NopEventLog{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = DefaultQueueTimeout
	}
	return &Coordinator{stations: stations, clk: clk, events: ev, log: log, bus: bus, timeout: cfg.QueueTimeout}
}

// AddStation registers st. Duplicate ids are rejected.
func (c *Coordinator) AddStation(st *model.ChargingStation) error {
	if st == nil {
		return model.Invalid("station", "", "station cannot be nil", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stations.Insert(st.ID(), st) {
		return model.Invalid("station", st.ID(), "duplicate station id", nil)
	}
	c.events.LogCharging(st.Name(), "Station registered.")
	return nil
}

// RequestCharge claims the first free station for v, or queues v when every
// station is busy. A waitlist scan always follows.
func (c *Coordinator) RequestCharge(v *vehicle.Vehicle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v.Charging() {
		c.processLocked()
		return
	}
	if st := c.firstFreeLocked(); st != nil {
		c.wait.remove(v.ID())
		c.admitLocked(v, st)
	} else if c.wait.push(v, c.clk.Now()) {
		v.MarkWaiting()
		c.events.LogCharging(QueueLabel, fmt.Sprintf("%s added to charging queue (Battery %d%%)", v.Name(), v.Battery()))
		c.publish(v, nil, events.ChargeQueued)
	}
	waitlistLength.Set(float64(c.wait.len()))
	c.processLocked()
}

// ProcessQueue handles the head of the waitlist. With a free station the head
// is admitted; otherwise it keeps waiting until the timeout and is then
// evicted. At most one entry changes per call.
func (c *Coordinator) ProcessQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processLocked()
}

func (c *Coordinator) processLocked() {
	defer func() { waitlistLength.Set(float64(c.wait.len())) }()

	head, ok := c.wait.head()
	if !ok {
		return
	}
	waited := c.clk.Since(head.since)
	st := c.firstFreeLocked()
	if st == nil {
		if waited < c.timeout {
			left := (c.timeout - waited) / time.Second
			c.events.LogCharging(QueueLabel, fmt.Sprintf("%s waiting (%d sec left)", head.v.Name(), left))
			return
		}
		c.wait.remove(head.v.ID())
		head.v.MarkLeftQueue()
		queueEvictions.Inc()
		c.events.LogCharging(QueueLabel, fmt.Sprintf("%s left queue after %d minutes timeout.", head.v.Name(), int(c.timeout.Minutes())))
		c.publish(head.v, nil, events.ChargeEvicted)
		return
	}
	c.wait.remove(head.v.ID())
	queueAdmissions.Inc()
	c.admitLocked(head.v, st)
}

// admitLocked occupies st and starts the charge cycle of v.
func (c *Coordinator) admitLocked(v *vehicle.Vehicle, st *model.ChargingStation) {
	if !st.Occupy() {
		c.log.Warnf("station %s taken concurrently", st.ID())
		return
	}
	if err := v.BeginCharging(st); err != nil {
		st.Release()
		c.log.Errorf("charging %s at %s: %v", v.ID(), st.ID(), err)
		return
	}
	chargeSessions.Inc()
	stationsInUse.Inc()
	c.events.LogCharging(st.Name(), v.Name()+" started charging.")
	c.publish(v, st, events.ChargeStarted)
}

// Release frees st. Releasing a free station is a no-op.
func (c *Coordinator) Release(st *model.ChargingStation) {
	if st == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.InUse() {
		st.Release()
		stationsInUse.Dec()
	}
}

func (c *Coordinator) firstFreeLocked() *model.ChargingStation {
	for _, st := range c.stations.List() {
		if !st.InUse() {
			return st
		}
	}
	return nil
}

func (c *Coordinator) publish(v *vehicle.Vehicle, st *model.ChargingStation, action events.ChargeAction) {
	if c.bus == nil {
		return
	}
	ev := events.ChargeEvent{VehicleID: v.ID(), Action: action, Battery: v.Battery(), Waitlist: c.wait.len(), Time: c.clk.Now()}
	if st != nil {
		ev.StationID = st.ID()
	}
	c.bus.Publish(ev)
}

// Stations returns a snapshot of every station in registration order.
func (c *Coordinator) Stations() []model.StationView {
	list := c.stations.List()
	out := make([]model.StationView, 0, len(list))
	for _, st := range list {
		out = append(out, st.View())
	}
	return out
}

// Waitlist returns the queued vehicles in FIFO order.
func (c *Coordinator) Waitlist() []WaitingVehicle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wait.snapshot(c.clk.Now())
}

// Waiting reports whether v is queued.
func (c *Coordinator) Waiting(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wait.contains(id)
}
