// Package fleet wires the repository, charging coordinator, dispatcher and
// worker pool of one fleet and exposes the operations callers use.
package fleet

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"

	"github.com/kilianp07/medfleet/core/charging"
	"github.com/kilianp07/medfleet/core/dispatch"
	"github.com/kilianp07/medfleet/core/logger"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/report"
	"github.com/kilianp07/medfleet/core/repository"
	"github.com/kilianp07/medfleet/core/sink"
	"github.com/kilianp07/medfleet/core/vehicle"
	"github.com/kilianp07/medfleet/core/workpool"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

// Deps are the external collaborators of a fleet. All are optional.
type Deps struct {
	Dest   sink.Destination
	Events sink.EventLog
	Log    logger.Logger
	Bus    eventbus.EventBus
	Clock  clock.WithTicker
}

// Fleet is one coordinator instance. It owns its worker pool.
type Fleet struct {
	cfg        Config
	repo       *repository.Repository
	pool       *workpool.Pool
	charging   *charging.Coordinator
	dispatcher *dispatch.Dispatcher
	vdeps      vehicle.Deps
	events     sink.EventLog
	log        logger.Logger
}

// New builds a fleet, registers its stations and seeds vehicles and items
// from cfg.
func New(cfg Config, dcfg dispatch.Config, deps Deps) (*Fleet, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fleet config: %w", err)
	}
	dcfg.SetDefaults()
	dcfg.LowBattery = cfg.LowBattery
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Events == nil {
		deps.Events = sink.NopEventLog{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop{}
	}

	repo := repository.New()
	pool := workpool.New(dcfg.Workers, deps.Log)
	coord := charging.NewCoordinator(repo.Stations, charging.Config{QueueTimeout: cfg.QueueTimeout},
		deps.Clock, deps.Events, deps.Log, deps.Bus)
	d, err := dispatch.New(dcfg, dispatch.Deps{
		Repo:   repo,
		Runner: pool,
		Dest:   deps.Dest,
		Events: deps.Events,
		Log:    deps.Log,
		Bus:    deps.Bus,
		Clock:  deps.Clock,
	})
	if err != nil {
		return nil, err
	}
	f := &Fleet{
		cfg:        cfg,
		repo:       repo,
		pool:       pool,
		charging:   coord,
		dispatcher: d,
		events:     deps.Events,
		log:        deps.Log,
		vdeps: vehicle.Deps{
			Charger:      coord,
			Resumer:      d,
			Runner:       pool,
			Clock:        deps.Clock,
			Events:       deps.Events,
			Log:          deps.Log,
			Bus:          deps.Bus,
			TickInterval: cfg.TickInterval,
			ChargeStep:   cfg.ChargeStep,
			LowBattery:   cfg.LowBattery,
		},
	}
	if err := f.seed(); err != nil {
		_ = pool.Close(context.Background())
		return nil, err
	}
	return f, nil
}

func (f *Fleet) seed() error {
	for _, st := range f.cfg.Stations {
		if err := f.AddStation(st.ID, st.Name); err != nil {
			return err
		}
	}
	for _, it := range f.cfg.Items {
		if err := f.AddItem(it.SKU, it.Name, it.Quantity); err != nil {
			return err
		}
	}
	for _, vc := range f.cfg.Vehicles {
		if _, err := f.AddVehicle(vc.ID, vc.Name); err != nil {
			return err
		}
		if vc.Battery != model.InitialBatteryPct {
			if err := f.SetBatteryLevel(vc.ID, vc.Battery); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddVehicle registers a vehicle at the initial battery level.
func (f *Fleet) AddVehicle(id, name string) (*vehicle.Vehicle, error) {
	v, err := vehicle.New(id, name, f.vdeps)
	if err != nil {
		return nil, err
	}
	if !f.repo.Vehicles.Insert(v.ID(), v) {
		return nil, model.Invalid("vehicle", v.ID(), "duplicate id", v.ID())
	}
	f.events.LogSystem(fmt.Sprintf("Vehicle added: %s", v))
	f.dispatcher.Signal()
	return v, nil
}

// AddStation registers a charging station and lets the head of the waitlist
// claim it.
func (f *Fleet) AddStation(id, name string) error {
	st, err := model.NewChargingStation(id, name)
	if err != nil {
		return err
	}
	if err := f.charging.AddStation(st); err != nil {
		return err
	}
	f.charging.ProcessQueue()
	return nil
}

// AddItem adds units to the unassigned pool, merging with an existing SKU.
func (f *Fleet) AddItem(sku, name string, qty int) error {
	it, err := model.NewItem(sku, name, qty)
	if err != nil {
		return err
	}
	if err := f.repo.Unassigned.Add(it); err != nil {
		return err
	}
	f.events.LogSystem(fmt.Sprintf("Item %s (%s) x%d added to the unassigned pool", it.SKU, it.Name, it.Quantity))
	f.dispatcher.Signal()
	return nil
}

// AddItemToVehicle loads it straight into a vehicle. It reports false when
// the vehicle already holds the maximum number of item kinds.
func (f *Fleet) AddItemToVehicle(vehicleID string, it *model.Item) (bool, error) {
	if it == nil {
		return false, &model.Error{Kind: model.NullItem, Entity: "item", Msg: "item is required"}
	}
	v, ok := f.repo.Vehicles.Get(vehicleID)
	if !ok {
		return false, model.Missing("vehicle", vehicleID)
	}
	return v.AddItem(it)
}

// SetBatteryLevel sets a vehicle battery level, which may start or finish
// a charge.
func (f *Fleet) SetBatteryLevel(vehicleID string, pct int) error {
	v, ok := f.repo.Vehicles.Get(vehicleID)
	if !ok {
		return model.Missing("vehicle", vehicleID)
	}
	return v.SetBatteryLevel(pct)
}

func (f *Fleet) CreateTask(t *model.Task) error { return f.dispatcher.CreateTask(t) }

func (f *Fleet) CreateManualTaskWithItem(t *model.Task, sku string) error {
	return f.dispatcher.CreateManualTaskWithItem(t, sku)
}

func (f *Fleet) UpdateStatus(taskID string, st model.TaskStatus) error {
	return f.dispatcher.UpdateStatus(taskID, st)
}

func (f *Fleet) AutoDistribute(batchID string) dispatch.Report {
	return f.dispatcher.AutoDistribute(batchID)
}

// Vehicle returns a snapshot of one vehicle.
func (f *Fleet) Vehicle(id string) (vehicle.View, error) {
	v, ok := f.repo.Vehicles.Get(id)
	if !ok {
		return vehicle.View{}, model.Missing("vehicle", id)
	}
	return v.Snapshot(), nil
}

// Vehicles returns vehicle snapshots in registration order.
func (f *Fleet) Vehicles() []vehicle.View {
	vs := f.repo.Vehicles.List()
	out := make([]vehicle.View, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Snapshot())
	}
	return out
}

func (f *Fleet) Stations() []model.StationView { return f.charging.Stations() }

func (f *Fleet) Waitlist() []charging.WaitingVehicle { return f.charging.Waitlist() }

func (f *Fleet) Tasks() []model.TaskView { return f.dispatcher.Tasks() }

// VehicleItems is the inventory of one vehicle.
type VehicleItems struct {
	VehicleID   string       `json:"vehicle_id"`
	VehicleName string       `json:"vehicle_name"`
	Items       []model.Item `json:"items"`
}

// Items lists every item, split into vehicle inventories and the
// unassigned pool.
type Items struct {
	Assigned   []VehicleItems `json:"assigned"`
	Unassigned []model.Item   `json:"unassigned"`
}

func (f *Fleet) Items() Items {
	var out Items
	for _, v := range f.repo.Vehicles.List() {
		inv := v.Inventory()
		if len(inv) == 0 {
			continue
		}
		out.Assigned = append(out.Assigned, VehicleItems{VehicleID: v.ID(), VehicleName: v.Name(), Items: inv})
	}
	out.Unassigned = f.repo.Unassigned.List()
	return out
}

// Summary reports battery statistics and charge states.
func (f *Fleet) Summary() report.Summary {
	return report.Summarize(f.Vehicles(), f.cfg.LowBattery)
}

// Pending returns the number of queued background jobs.
func (f *Fleet) Pending() int { return f.pool.Pending() }

// Close drains queued deliveries within ctx and stops charge cycles.
func (f *Fleet) Close(ctx context.Context) error {
	f.log.Infof("fleet shutting down with %d pending jobs", f.pool.Pending())
	return f.pool.Close(ctx)
}
