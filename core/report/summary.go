// Package report computes operator summaries of the fleet state.
package report

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/medfleet/core/vehicle"
)

// Summary aggregates the battery and charging state of a fleet.
type Summary struct {
	Vehicles     int                   `json:"vehicles"`
	MeanBattery  float64               `json:"mean_battery_pct"`
	StdDev       float64               `json:"stddev_battery_pct"`
	MinBattery   float64               `json:"min_battery_pct"`
	MaxBattery   float64               `json:"max_battery_pct"`
	LowBattery   int                   `json:"low_battery"`
	LeftQueue    int                   `json:"left_queue"`
	ByState      map[vehicle.State]int `json:"by_state"`
	LoadedUnits  int                   `json:"loaded_units"`
	LoadedByItem map[string]int        `json:"loaded_by_sku"`
}

// Summarize builds a Summary from vehicle snapshots. Vehicles at or below
// lowBattery are counted in LowBattery.
func Summarize(views []vehicle.View, lowBattery int) Summary {
	s := Summary{
		Vehicles:     len(views),
		ByState:      map[vehicle.State]int{},
		LoadedByItem: map[string]int{},
	}
	if len(views) == 0 {
		return s
	}
	levels := make([]float64, len(views))
	for i, v := range views {
		levels[i] = float64(v.Battery)
		s.ByState[v.State]++
		if v.Battery <= lowBattery {
			s.LowBattery++
		}
		if v.LeftQueue {
			s.LeftQueue++
		}
		for _, it := range v.Inventory {
			s.LoadedUnits += it.Quantity
			s.LoadedByItem[it.SKU] += it.Quantity
		}
	}
	s.MeanBattery, s.StdDev = stat.MeanStdDev(levels, nil)
	if len(levels) == 1 {
		s.StdDev = 0
	}
	s.MinBattery = floats.Min(levels)
	s.MaxBattery = floats.Max(levels)
	return s
}
