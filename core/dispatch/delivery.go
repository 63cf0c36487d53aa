package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/monitoring"
	"github.com/kilianp07/medfleet/core/vehicle"
	"github.com/kilianp07/medfleet/core/workpool"
)

// wait blocks for d on the dispatcher clock. It returns false when ctx ends
// first.
func (d *Dispatcher) wait(ctx context.Context, dur time.Duration) bool {
	select {
	case <-d.clk.After(dur):
		return true
	case <-ctx.Done():
		return false
	}
}

// manualDelivery delivers up to MaxUnitsPerTask units of the first loaded
// item once the manual delivery delay has elapsed.
func (d *Dispatcher) manualDelivery(t *model.Task, v *vehicle.Vehicle) workpool.Job {
	return func(ctx context.Context) {
		d.log.Infof("[TASK %s] running delivery for vehicle %s", t.ID, v.Name())
		if !d.wait(ctx, d.cfg.ManualDeliveryDelay) {
			d.log.Warnf("[TASK %s] delivery interrupted for %s", t.ID, v.Name())
			return
		}

		it, ok := v.FirstDeliverable()
		if !ok {
			d.log.Infof("[TASK %s] no items found in vehicle %s to deliver", t.ID, v.Name())
			d.complete(t, v, false)
			return
		}
		qty := min(it.Quantity, d.cfg.MaxUnitsPerTask)
		if err := d.dest.RecordDelivery(v.Name(), it.Name, qty); err != nil {
			d.deliveryFailed(t, v, it.WithQuantity(qty), false, err)
			return
		}
		if _, err := v.Unload(it.SKU, qty); err != nil {
			d.log.Errorf("[TASK %s] unloading %s from %s: %v", t.ID, it.SKU, v.ID(), err)
		}
		d.events.LogSystem(fmt.Sprintf("[TASK %s] Delivered %d of %s from vehicle %s", t.ID, qty, it.Name, v.Name()))
		if v.Quantity(it.SKU) == 0 {
			d.events.LogVehicle(v.Name(), "Item "+it.Name+" fully delivered and removed from inventory.")
		}
		d.delivered(t, v, it.WithQuantity(qty), false)
		d.complete(t, v, false)
	}
}

// autoDelivery delivers the chunk loaded for an auto-distributed task.
func (d *Dispatcher) autoDelivery(t *model.Task, v *vehicle.Vehicle, chunk model.Item) workpool.Job {
	return func(ctx context.Context) {
		d.log.Infof("[TASK %s] vehicle %s transporting %d %s", t.ID, v.Name(), chunk.Quantity, chunk.Name)
		if !d.wait(ctx, d.cfg.AutoDeliveryDelay) {
			d.log.Warnf("[TASK %s] delivery interrupted for %s", t.ID, v.Name())
			return
		}
		if err := d.dest.RecordDelivery(v.Name(), chunk.Name, chunk.Quantity); err != nil {
			d.deliveryFailed(t, v, chunk, true, err)
			return
		}
		if _, err := v.Unload(chunk.SKU, chunk.Quantity); err != nil {
			d.log.Errorf("[TASK %s] unloading %s from %s: %v", t.ID, chunk.SKU, v.ID(), err)
		}
		d.log.Infof("[TASK %s] delivered %d %s", t.ID, chunk.Quantity, chunk.Name)
		d.delivered(t, v, chunk, true)
		d.complete(t, v, true)
	}
}

// complete is the shared delivery tail: the battery cost is applied, the
// task marked DONE, and a resume attempt signaled when the vehicle stays above
// the low threshold. A low battery requests charging through the vehicle
// itself. The active task keeps the vehicle out of concurrent passes until
// its battery reflects the cost.
func (d *Dispatcher) complete(t *model.Task, v *vehicle.Vehicle, auto bool) {
	cost, label := d.cfg.ManualBatteryCost, "manual delivery"
	if auto {
		cost, label = d.cfg.AutoBatteryCost, "auto-distribution"
	}
	before, after := v.DrainBattery(cost)
	d.events.LogVehicle(v.Name(), fmt.Sprintf("Battery drop after %s: %d%% -> %d%%", label, before, after))
	if _, err := t.Transition(model.TaskDone); err != nil {
		d.log.Warnf("[TASK %s] %v", t.ID, err)
	} else {
		d.publishTask(t, originLabel(auto))
	}
	if after <= d.cfg.LowBattery {
		d.log.Infof("%s battery low (%d%%), sent to charge", v.Name(), after)
		return
	}
	d.Signal()
}

func (d *Dispatcher) delivered(t *model.Task, v *vehicle.Vehicle, it model.Item, auto bool) {
	deliveries.WithLabelValues(originLabel(auto), outcomeSuccess).Inc()
	d.publishDelivery(t, v, it, auto, nil)
}

// deliveryFailed leaves the task and inventory untouched.
func (d *Dispatcher) deliveryFailed(t *model.Task, v *vehicle.Vehicle, it model.Item, auto bool, err error) {
	d.log.Errorf("[TASK %s] recording delivery of %d %s from %s: %v", t.ID, it.Quantity, it.Name, v.Name(), err)
	d.events.LogSystem(fmt.Sprintf("[TASK %s] Delivery failed: %v", t.ID, err))
	deliveries.WithLabelValues(originLabel(auto), outcomeFailure).Inc()
	monitoring.CaptureException(err, map[string]string{
		"task_id":    t.ID,
		"vehicle_id": v.ID(),
		"sku":        it.SKU,
		"origin":     originLabel(auto),
	})
	d.publishDelivery(t, v, it, auto, err)
}

func (d *Dispatcher) publishDelivery(t *model.Task, v *vehicle.Vehicle, it model.Item, auto bool, err error) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.DeliveryEvent{
		TaskID:    t.ID,
		VehicleID: v.ID(),
		SKU:       it.SKU,
		Quantity:  it.Quantity,
		Auto:      auto,
		Battery:   v.Battery(),
		Err:       err,
		Time:      d.clk.Now(),
	})
}

func originLabel(auto bool) string {
	if auto {
		return originAuto
	}
	return originManual
}
