// Package model defines the entities shared by the fleet coordinator:
// items, charging stations, tasks and the closed set of domain error kinds.
//
// Constants mirror the fixed simulation parameters of the fleet.
package model

const (
	// LowBatteryPct is the level at or below which a vehicle asks to charge.
	LowBatteryPct = 14
	// FullBatteryPct ends a charge cycle.
	FullBatteryPct = 100
	// InitialBatteryPct is the level of a newly created vehicle.
	InitialBatteryPct = 20
	// MaxItemKinds is the number of distinct SKUs a vehicle can hold.
	MaxItemKinds = 50
	// MaxUnitsPerTask caps the units moved by a single delivery task.
	MaxUnitsPerTask = 50
)
