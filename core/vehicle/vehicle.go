// Package vehicle implements the per-vehicle battery and charging state
// machine together with the vehicle inventory.
//
// A vehicle never calls the charging coordinator while holding its own lock;
// the coordinator may call into a vehicle while holding the coordinator lock.
package vehicle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/logger"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/sink"
	"github.com/kilianp07/medfleet/core/workpool"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

// Charger is the charging coordinator as seen by a vehicle.
type Charger interface {
	RequestCharge(v *Vehicle)
	Release(st *model.ChargingStation)
	ProcessQueue()
}

// Resumer is signaled whenever a vehicle becomes idle after charging.
type Resumer interface {
	Signal()
}

// Runner hosts the long-lived charge cycle of a vehicle.
type Runner interface {
	Go(j workpool.Job) error
}

// Deps are the collaborators shared by every vehicle of a fleet.
type Deps struct {
	Charger Charger
	Resumer Resumer
	Runner  Runner
	Clock   clock.WithTicker
	Events  sink.EventLog
	Log     logger.Logger
	Bus     eventbus.EventBus

	// TickInterval is the time between two charge increments.
	TickInterval time.Duration
	// ChargeStep is the battery gain per tick in percentage points.
	ChargeStep int
	// LowBattery is the threshold at or below which charging is requested.
	LowBattery int
}

const (
	DefaultTickInterval = 20 * time.Second
	DefaultChargeStep   = 5
)

func (d *Deps) setDefaults() {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Events == nil {
		d.Events = sink.NopEventLog{}
	}
	if d.Log == nil {
		d.Log = logger.Nop{}
	}
	if d.Charger == nil {
		d.Charger = nopCharger{}
	}
	if d.TickInterval <= 0 {
		d.TickInterval = DefaultTickInterval
	}
	if d.ChargeStep <= 0 {
		d.ChargeStep = DefaultChargeStep
	}
	if d.LowBattery <= 0 {
		d.LowBattery = model.LowBatteryPct
	}
}

type nopCharger struct{}

func (nopCharger) RequestCharge(*Vehicle)         {}
func (nopCharger) Release(*model.ChargingStation) {}
func (nopCharger) ProcessQueue()                  {}

// Vehicle is an autonomous storage vehicle.
type Vehicle struct {
	id   string
	name string
	deps Deps

	mu        sync.Mutex
	battery   int
	machine   *fsm.FSM
	station   *model.ChargingStation
	leftQueue bool
	cycle     uint64
	inventory map[string]model.Item
	order     []string
}

// New validates id and name and returns an idle vehicle at the initial
// battery level.
func New(id, name string, deps Deps) (*Vehicle, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return nil, model.Invalid("vehicle", "", "id cannot be blank", nil)
	}
	if name == "" {
		return nil, model.Invalid("vehicle", id, "name cannot be blank", nil)
	}
	deps.setDefaults()
	v := &Vehicle{
		id:        id,
		name:      name,
		deps:      deps,
		battery:   model.InitialBatteryPct,
		inventory: map[string]model.Item{},
	}
	v.machine = newChargeFSM(func(from, to, ev string) {
		v.deps.Log.Debugw("charge state", map[string]any{"vehicle": v.id, "from": from, "to": to, "event": ev})
	})
	return v, nil
}

func (v *Vehicle) ID() string   { return v.id }
func (v *Vehicle) Name() string { return v.name }

// Battery returns the battery level in percent.
func (v *Vehicle) Battery() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.battery
}

// State returns the current charging state.
func (v *Vehicle) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Vehicle) stateLocked() State { return State(v.machine.Current()) }

// Charging reports whether the vehicle is in a charge cycle.
func (v *Vehicle) Charging() bool { return v.State() == StateCharging }

// Waiting reports whether the vehicle sits on the charging waitlist.
func (v *Vehicle) Waiting() bool { return v.State() == StateWaiting }

// LeftQueue reports whether the vehicle was evicted from the waitlist.
func (v *Vehicle) LeftQueue() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.leftQueue
}

// Station returns the station the vehicle charges at, or nil.
func (v *Vehicle) Station() *model.ChargingStation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.station
}

// SetBatteryLevel is the only way to set the battery. Values outside 0..100
// are rejected. A low level requests charging; a full level ends a cycle.
func (v *Vehicle) SetBatteryLevel(pct int) error {
	if pct < 0 || pct > model.FullBatteryPct {
		return model.Invalid("vehicle", v.id, "battery level must be 0-100", pct)
	}
	v.applyBattery(func(int) int { return pct })
	return nil
}

// DrainBattery lowers the battery by cost points, stopping at zero, and
// returns the levels before and after.
func (v *Vehicle) DrainBattery(cost int) (before, after int) {
	return v.applyBattery(func(cur int) int {
		n := cur - cost
		if n < 0 {
			n = 0
		}
		return n
	})
}

func (v *Vehicle) applyBattery(next func(cur int) int) (before, after int) {
	v.mu.Lock()
	before = v.battery
	v.battery = next(before)
	after = v.battery
	state := v.stateLocked()
	v.mu.Unlock()

	switch {
	case after <= v.deps.LowBattery && state != StateCharging:
		v.deps.Charger.RequestCharge(v)
	case state == StateCharging && after >= model.FullBatteryPct:
		v.finishCharging()
	}
	return before, after
}

// MarkWaiting records that the coordinator queued the vehicle.
func (v *Vehicle) MarkWaiting() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leftQueue = false
	if err := v.machine.Event(context.Background(), EventEnqueue); isTransitionError(err) {
		v.deps.Log.Warnf("%s: enqueue rejected in state %s: %v", v.id, v.stateLocked(), err)
	}
}

// MarkLeftQueue records that the coordinator evicted the vehicle.
func (v *Vehicle) MarkLeftQueue() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leftQueue = true
	if err := v.machine.Event(context.Background(), EventLeaveQueue); isTransitionError(err) {
		v.deps.Log.Warnf("%s: leave queue rejected in state %s: %v", v.id, v.stateLocked(), err)
	}
}

// BeginCharging starts a charge cycle at st, which the caller has already
// occupied. The cycle runs on the Runner until the battery is full.
func (v *Vehicle) BeginCharging(st *model.ChargingStation) error {
	v.mu.Lock()
	if err := v.machine.Event(context.Background(), EventPlug); err != nil {
		state := v.stateLocked()
		v.mu.Unlock()
		return fmt.Errorf("vehicle %s cannot charge from %s: %w", v.id, state, err)
	}
	v.station = st
	v.leftQueue = false
	v.cycle++
	cycle := v.cycle
	battery := v.battery
	v.mu.Unlock()

	v.logVehicle(fmt.Sprintf("Battery low (%d%%). %s going to %s for charging...", battery, v.name, st.Name()))
	if v.deps.Runner == nil {
		return nil
	}
	if err := v.deps.Runner.Go(func(ctx context.Context) { v.chargeLoop(ctx, cycle) }); err != nil {
		v.deps.Log.Errorf("%s: charge cycle not started: %v", v.id, err)
	}
	return nil
}

// chargeLoop adds ChargeStep points every tick until the cycle ends.
func (v *Vehicle) chargeLoop(ctx context.Context, cycle uint64) {
	t := v.deps.Clock.NewTicker(v.deps.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
		}
		v.mu.Lock()
		if v.cycle != cycle || v.stateLocked() != StateCharging {
			v.mu.Unlock()
			return
		}
		v.battery += v.deps.ChargeStep
		if v.battery > model.FullBatteryPct {
			v.battery = model.FullBatteryPct
		}
		battery := v.battery
		stName := ""
		if v.station != nil {
			stName = v.station.Name()
		}
		v.mu.Unlock()

		v.logVehicle(fmt.Sprintf("%s charging at %s... Battery now %d%%", v.name, stName, battery))
		if battery >= model.FullBatteryPct {
			v.finishCharging()
			return
		}
	}
}

// finishCharging ends the cycle exactly once, frees the station, scans the
// waitlist and signals a resume attempt.
func (v *Vehicle) finishCharging() {
	v.mu.Lock()
	if err := v.machine.Event(context.Background(), EventUnplug); err != nil {
		v.mu.Unlock()
		return
	}
	st := v.station
	v.station = nil
	battery := v.battery
	v.mu.Unlock()

	if st != nil {
		v.deps.Charger.Release(st)
		v.deps.Events.LogCharging(st.Name(), st.Name()+" is now FREE.")
	}
	v.logVehicle(v.name + " fully charged and ready to resume tasks.")
	if v.deps.Bus != nil {
		ev := events.ChargeEvent{VehicleID: v.id, Action: events.ChargeFinished, Battery: battery, Time: v.deps.Clock.Now()}
		if st != nil {
			ev.StationID = st.ID()
		}
		v.deps.Bus.Publish(ev)
	}
	v.deps.Charger.ProcessQueue()
	if v.deps.Resumer != nil {
		v.deps.Resumer.Signal()
	}
}

func (v *Vehicle) logVehicle(msg string) {
	v.deps.Events.LogVehicle(v.name, msg)
	v.deps.Log.Infof("%s", msg)
}

// View is a read-only snapshot of a vehicle.
type View struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Battery   int          `json:"battery_pct"`
	State     State        `json:"state"`
	StationID string       `json:"station_id,omitempty"`
	LeftQueue bool         `json:"left_queue"`
	Inventory []model.Item `json:"inventory"`
}

// Snapshot returns a consistent view of the vehicle.
func (v *Vehicle) Snapshot() View {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := View{
		ID:        v.id,
		Name:      v.name,
		Battery:   v.battery,
		State:     v.stateLocked(),
		LeftQueue: v.leftQueue,
		Inventory: v.inventoryLocked(),
	}
	if v.station != nil {
		view.StationID = v.station.ID()
	}
	return view
}

// Free reports whether the vehicle can take auto-distributed work: empty
// inventory, idle, not evicted from the queue, and above the low threshold.
// Active tasks are checked by the dispatcher.
func (v *Vehicle) Free() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order) == 0 &&
		v.stateLocked() == StateIdle &&
		!v.leftQueue &&
		v.battery > v.deps.LowBattery
}

func (v *Vehicle) String() string {
	s := v.Snapshot()
	out := fmt.Sprintf("Vehicle{id=%s, name=%s, battery=%d%%", s.ID, s.Name, s.Battery)
	if s.StationID != "" {
		out += ", station=" + s.StationID
	}
	if s.State == StateCharging {
		out += ", charging=true"
	}
	return out + "}"
}
