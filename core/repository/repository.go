// Package repository holds the in-memory keyed stores shared by the
// coordinator components: vehicles, charging stations, tasks and the
// unassigned item pool.
package repository

import (
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/vehicle"
)

// Repository groups the fleet stores. It has no behavior of its own; each
// entity is mutated through its owning component.
type Repository struct {
	Vehicles   *Store[*vehicle.Vehicle]
	Stations   *Store[*model.ChargingStation]
	Tasks      *Store[*model.Task]
	Unassigned *ItemPool
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{
		Vehicles:   NewStore[*vehicle.Vehicle](),
		Stations:   NewStore[*model.ChargingStation](),
		Tasks:      NewStore[*model.Task](),
		Unassigned: NewItemPool(),
	}
}

// ActiveTaskFor reports whether vehicleID holds a PENDING or IN_PROGRESS task.
func (r *Repository) ActiveTaskFor(vehicleID string) bool {
	for _, t := range r.Tasks.List() {
		if t.HeldBy(vehicleID) {
			return true
		}
	}
	return false
}
