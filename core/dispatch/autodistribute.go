package dispatch

import (
	"fmt"

	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/vehicle"
)

// Reasons reported by a no-op auto-distribution pass.
const (
	ReasonNoItems    = "no unassigned items"
	ReasonNoVehicles = "no free vehicles"
)

// Report summarizes one auto-distribution pass.
type Report struct {
	BatchID   string       `json:"batch_id"`
	Tasks     []string     `json:"tasks"`
	Leftovers []model.Item `json:"leftovers,omitempty"`
	// Reason is set when the pass did nothing.
	Reason string `json:"reason,omitempty"`
}

// NoOp reports whether the pass created no task.
func (r Report) NoOp() bool { return r.Reason != "" }

// AutoDistribute enables auto mode and spreads the unassigned pool over the
// free vehicles, one task of at most MaxUnitsPerTask units per vehicle. Items
// are filled in pool order; the pass stops once vehicles run out and whatever
// remains is reported as leftover.
func (d *Dispatcher) AutoDistribute(batchID string) Report {
	d.auto.Store(true)

	d.mu.Lock()
	defer d.mu.Unlock()

	rep := Report{BatchID: batchID}
	if d.repo.Unassigned.Empty() {
		rep.Reason = ReasonNoItems
		d.events.LogSystem(fmt.Sprintf("[AUTO %s] No unassigned items.", batchID))
		return rep
	}
	free := d.freeVehiclesLocked()
	if len(free) == 0 {
		rep.Reason = ReasonNoVehicles
		d.events.LogSystem(fmt.Sprintf("[AUTO %s] No free vehicles.", batchID))
		return rep
	}

	d.events.LogSystem(fmt.Sprintf("[AUTO-DIST %s] Starting distribution over %d vehicles...", batchID, len(free)))
	next := 0
	units := 0
	for _, item := range d.repo.Unassigned.List() {
		if item.Quantity <= 0 {
			_, _ = d.repo.Unassigned.Take(item.SKU, 0)
			continue
		}
		units += item.Quantity
		if next >= len(free) {
			rep.Leftovers = append(rep.Leftovers, item)
			continue
		}
		remaining := item.Quantity
		for remaining > 0 && next < len(free) {
			v := free[next]
			next++
			moved, id, ok := d.assignChunkLocked(v, item.SKU, min(d.cfg.MaxUnitsPerTask, remaining))
			if !ok {
				continue
			}
			remaining -= moved
			rep.Tasks = append(rep.Tasks, id)
		}
		if remaining > 0 {
			rep.Leftovers = append(rep.Leftovers, item.WithQuantity(remaining))
		}
	}

	for _, it := range rep.Leftovers {
		leftoverUnits.Add(float64(it.Quantity))
		d.log.Warnf("%d %s still unassigned; add more free vehicles", it.Quantity, it.Name)
		d.events.LogSystem(fmt.Sprintf("WARNING: %d %s still unassigned. Add more free vehicles.", it.Quantity, it.Name))
	}
	switch {
	case units == 0:
		rep.Reason = ReasonNoItems
	case len(rep.Tasks) == 0:
		rep.Reason = ReasonNoVehicles
	}
	d.events.LogSystem(fmt.Sprintf("[AUTO-DIST %s] Completed with %d tasks.", batchID, len(rep.Tasks)))
	return rep
}

// assignChunkLocked moves qty units of sku onto v and schedules an
// IN_PROGRESS task delivering them.
func (d *Dispatcher) assignChunkLocked(v *vehicle.Vehicle, sku string, qty int) (int, string, bool) {
	chunk, err := d.repo.Unassigned.Take(sku, qty)
	if err != nil {
		d.log.Warnf("taking %s for %s: %v", sku, v.ID(), err)
		return 0, "", false
	}
	if added, err := v.AddItem(&chunk); err != nil || !added {
		if perr := d.repo.Unassigned.Add(chunk); perr != nil {
			d.log.Errorf("returning %s to the unassigned pool: %v", sku, perr)
		}
		return 0, "", false
	}

	id := d.nextTaskIDLocked()
	t := model.NewTask(id, fmt.Sprintf("Deliver %d %s", chunk.Quantity, chunk.Name), v.ID())
	if _, err := t.Transition(model.TaskInProgress); err != nil {
		d.log.Errorf("starting %s: %v", id, err)
	}
	if !d.repo.Tasks.Insert(id, t) {
		d.log.Errorf("task id %s already taken", id)
	}
	d.taskCreated(t, originAuto)
	d.events.LogVehicle(v.Name(), fmt.Sprintf("Assigned task %s: %d %s", id, chunk.Quantity, chunk.Name))

	if err := d.runner.Submit(d.autoDelivery(t, v, chunk)); err != nil {
		d.log.Errorf("scheduling delivery for %s: %v", id, err)
	}
	return chunk.Quantity, id, true
}

// freeVehiclesLocked returns the vehicles that can take auto-distributed
// work, in registration order.
func (d *Dispatcher) freeVehiclesLocked() []*vehicle.Vehicle {
	var free []*vehicle.Vehicle
	for _, v := range d.repo.Vehicles.List() {
		if d.isFree(v) {
			free = append(free, v)
		}
	}
	return free
}

func (d *Dispatcher) isFree(v *vehicle.Vehicle) bool {
	if d.repo.ActiveTaskFor(v.ID()) {
		d.log.Debugf("%s skipped: active task", v.Name())
		return false
	}
	if !v.Free() {
		d.log.Debugf("%s skipped: battery=%d%% state=%s", v.Name(), v.Battery(), v.State())
		return false
	}
	return true
}

// FreeVehicles returns the ids of the vehicles auto-distribution would use.
func (d *Dispatcher) FreeVehicles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for _, v := range d.freeVehiclesLocked() {
		ids = append(ids, v.ID())
	}
	return ids
}
