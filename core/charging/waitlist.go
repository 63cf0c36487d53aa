package charging

import (
	"time"

	"github.com/kilianp07/medfleet/core/vehicle"
)

// entry is one waiting vehicle and the time it was queued.
type entry struct {
	v     *vehicle.Vehicle
	since time.Time
}

// waitlist is an insertion-ordered queue keyed by vehicle id. It is guarded by
// the coordinator lock.
type waitlist struct {
	entries []entry
}

func (w *waitlist) contains(id string) bool {
	return w.index(id) >= 0
}

func (w *waitlist) index(id string) int {
	for i, e := range w.entries {
		if e.v.ID() == id {
			return i
		}
	}
	return -1
}

// push appends v unless it is already queued.
func (w *waitlist) push(v *vehicle.Vehicle, now time.Time) bool {
	if w.contains(v.ID()) {
		return false
	}
	w.entries = append(w.entries, entry{v: v, since: now})
	return true
}

func (w *waitlist) head() (entry, bool) {
	if len(w.entries) == 0 {
		return entry{}, false
	}
	return w.entries[0], true
}

// remove drops the vehicle and reports whether it was queued.
func (w *waitlist) remove(id string) bool {
	i := w.index(id)
	if i < 0 {
		return false
	}
	w.entries = append(w.entries[:i], w.entries[i+1:]...)
	return true
}

func (w *waitlist) len() int { return len(w.entries) }

// WaitingVehicle is a snapshot of one waitlist entry.
type WaitingVehicle struct {
	VehicleID string        `json:"vehicle_id"`
	Name      string        `json:"name"`
	Since     time.Time     `json:"since"`
	Waited    time.Duration `json:"waited"`
}

func (w *waitlist) snapshot(now time.Time) []WaitingVehicle {
	out := make([]WaitingVehicle, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, WaitingVehicle{VehicleID: e.v.ID(), Name: e.v.Name(), Since: e.since, Waited: now.Sub(e.since)})
	}
	return out
}
