// Package dispatch implements the task lifecycle, manual and automatic task
// assignment, simulated deliveries and the resume coordinator that re-runs
// auto-distribution whenever a vehicle frees up.
package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"k8s.io/utils/clock"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/logger"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/repository"
	"github.com/kilianp07/medfleet/core/sink"
	"github.com/kilianp07/medfleet/core/vehicle"
	"github.com/kilianp07/medfleet/core/workpool"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

const (
	originManual     = "manual"
	originManualItem = "manual_item"
	originAuto       = "auto"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeNoop    = "noop"
	outcomeRun     = "run"
)

// Submitter runs jobs on the worker pool.
type Submitter interface {
	Submit(j workpool.Job) error
}

// Deps are the collaborators of a Dispatcher. Repo and Runner are required.
type Deps struct {
	Repo   *repository.Repository
	Runner Submitter
	Dest   sink.Destination
	Events sink.EventLog
	Log    logger.Logger
	Bus    eventbus.EventBus
	Clock  clock.Clock
}

// Dispatcher owns task creation, status transitions and auto-distribution.
type Dispatcher struct {
	repo   *repository.Repository
	runner Submitter
	dest   sink.Destination
	events sink.EventLog
	log    logger.Logger
	bus    eventbus.EventBus
	clk    clock.Clock
	cfg    Config

	// mu serializes task creation and auto-distribution so capacity and
	// quantities are never counted twice.
	mu       sync.Mutex
	nextTask int

	auto          atomic.Bool
	resumeRunning atomic.Bool
	resumePending atomic.Bool
}

// New returns a Dispatcher. Missing optional collaborators fall back to
// no-ops and the real clock.
func New(cfg Config, deps Deps) (*Dispatcher, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("dispatch: repository is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("dispatch: runner is required")
	}
	cfg.SetDefaults()
	d := &Dispatcher{
		repo:   deps.Repo,
		runner: deps.Runner,
		dest:   deps.Dest,
		events: deps.Events,
		log:    deps.Log,
		bus:    deps.Bus,
		clk:    deps.Clock,
		cfg:    cfg,
	}
	if d.dest == nil {
		d.dest = sink.NopDestination{}
	}
	if d.events == nil {
		d.events = sink.NopEventLog{}
	}
	if d.log == nil {
		d.log = logger.Nop{}
	}
	if d.clk == nil {
		d.clk = clock.RealClock{}
	}
	return d, nil
}

// AutoMode reports whether auto-distribution has been enabled.
func (d *Dispatcher) AutoMode() bool { return d.auto.Load() }

// CreateTask registers t. When t names an assignee and manual auto-load is
// enabled, the first unassigned item is loaded onto that vehicle.
func (d *Dispatcher) CreateTask(t *model.Task) error {
	if t == nil {
		return model.Invalid("task", "", "task cannot be nil", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkNewLocked(t); err != nil {
		return err
	}
	var v *vehicle.Vehicle
	if t.AssigneeID != "" {
		var ok bool
		if v, ok = d.repo.Vehicles.Get(t.AssigneeID); !ok {
			return model.Missing("vehicle", t.AssigneeID)
		}
	}
	if err := d.registerLocked(t); err != nil {
		return err
	}
	d.events.LogSystem("Task created: " + t.String())
	d.taskCreated(t, originManual)

	if v == nil {
		return nil
	}
	if !d.cfg.SkipManualAutoLoad {
		d.loadFirstUnassigned(t, v)
	}
	d.events.LogVehicle(v.Name(), "Assigned task "+t.ID)
	return nil
}

func (d *Dispatcher) loadFirstUnassigned(t *model.Task, v *vehicle.Vehicle) {
	it, ok := d.repo.Unassigned.TakeFirst()
	if !ok {
		return
	}
	added, err := v.AddItem(&it)
	if err != nil || !added {
		if perr := d.repo.Unassigned.Add(it); perr != nil {
			d.log.Errorf("returning %s to the unassigned pool: %v", it.SKU, perr)
		}
		if err != nil {
			d.log.Warnf("loading %s onto %s: %v", it.SKU, v.ID(), err)
		}
		return
	}
	d.events.LogVehicle(v.Name(), fmt.Sprintf("Assigned item '%s' from unassigned pool when creating manual task %s", it.Name, t.ID))
}

// CreateManualTaskWithItem loads up to MaxUnitsPerTask units of sku from the
// unassigned pool onto the assignee of t and registers t. Nothing changes when
// any check fails.
func (d *Dispatcher) CreateManualTaskWithItem(t *model.Task, sku string) error {
	if t == nil {
		return model.Invalid("task", "", "task cannot be nil", nil)
	}
	sku = strings.TrimSpace(sku)
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkNewLocked(t); err != nil {
		return err
	}
	if t.AssigneeID == "" {
		return model.Invalid("task", t.ID, "manual task requires an assignee", nil)
	}
	v, ok := d.repo.Vehicles.Get(t.AssigneeID)
	if !ok {
		return model.Missing("vehicle", t.AssigneeID)
	}
	if _, ok := d.repo.Unassigned.Get(sku); !ok {
		return model.Missing("item", sku)
	}
	if v.Quantity(sku) == 0 && !v.HasCapacity() {
		return &model.Error{Kind: model.CapacityExceeded, Entity: "vehicle", ID: v.ID(), Value: sku, Msg: "no room for another item kind"}
	}

	portion, err := d.repo.Unassigned.Take(sku, d.cfg.MaxUnitsPerTask)
	if err != nil {
		return err
	}
	if added, err := v.AddItem(&portion); err != nil || !added {
		if perr := d.repo.Unassigned.Add(portion); perr != nil {
			d.log.Errorf("returning %s to the unassigned pool: %v", sku, perr)
		}
		if err != nil {
			return err
		}
		return &model.Error{Kind: model.CapacityExceeded, Entity: "vehicle", ID: v.ID(), Value: sku}
	}
	d.events.LogVehicle(v.Name(), fmt.Sprintf("Loaded %d units of '%s' for manual task %s", portion.Quantity, portion.Name, t.ID))

	if err := d.registerLocked(t); err != nil {
		return err
	}
	d.events.LogSystem("Manual Task created: " + t.String())
	d.events.LogVehicle(v.Name(), "Assigned task "+t.ID)
	d.taskCreated(t, originManualItem)
	return nil
}

// UpdateStatus moves a task to status. Entering IN_PROGRESS on an assigned
// task schedules its delivery.
func (d *Dispatcher) UpdateStatus(taskID string, status model.TaskStatus) error {
	t, ok := d.repo.Tasks.Get(strings.TrimSpace(taskID))
	if !ok {
		return model.Missing("task", taskID)
	}
	var v *vehicle.Vehicle
	if t.AssigneeID != "" {
		if v, ok = d.repo.Vehicles.Get(t.AssigneeID); !ok {
			return model.Missing("vehicle", t.AssigneeID)
		}
	}
	prev, err := t.Transition(status)
	if err != nil {
		return err
	}
	d.events.LogSystem(fmt.Sprintf("Task %s -> %s", t.ID, status))
	d.publishTask(t, originManual)

	if v != nil && status == model.TaskInProgress && prev != model.TaskInProgress {
		if err := d.runner.Submit(d.manualDelivery(t, v)); err != nil {
			d.log.Errorf("scheduling delivery for %s: %v", t.ID, err)
		}
	}
	return nil
}

// Tasks returns every task in creation order.
func (d *Dispatcher) Tasks() []model.TaskView {
	list := d.repo.Tasks.List()
	out := make([]model.TaskView, 0, len(list))
	for _, t := range list {
		out = append(out, t.View())
	}
	return out
}

func (d *Dispatcher) checkNewLocked(t *model.Task) error {
	if t.ID == "" {
		return model.Invalid("task", "", "id cannot be blank", nil)
	}
	if d.repo.Tasks.Has(t.ID) {
		return model.Invalid("task", t.ID, "duplicate task id", nil)
	}
	return nil
}

func (d *Dispatcher) registerLocked(t *model.Task) error {
	if err := d.checkNewLocked(t); err != nil {
		return err
	}
	if !d.repo.Tasks.Insert(t.ID, t) {
		return model.Invalid("task", t.ID, "duplicate task id", nil)
	}
	return nil
}

// nextTaskIDLocked returns the next free "Task N" id.
func (d *Dispatcher) nextTaskIDLocked() string {
	for {
		d.nextTask++
		id := fmt.Sprintf("Task %d", d.nextTask)
		if !d.repo.Tasks.Has(id) {
			return id
		}
	}
}

func (d *Dispatcher) taskCreated(t *model.Task, origin string) {
	tasksCreated.WithLabelValues(origin).Inc()
	d.publishTask(t, origin)
}

func (d *Dispatcher) publishTask(t *model.Task, origin string) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.TaskEvent{TaskID: t.ID, VehicleID: t.AssigneeID, Status: string(t.Status()), Origin: origin, Time: d.clk.Now()})
}
