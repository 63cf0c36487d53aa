package fleet

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/medfleet/core/charging"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/vehicle"
)

// StationConfig declares a charging station.
type StationConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VehicleConfig declares a vehicle registered at startup.
type VehicleConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Battery 0 starts the vehicle at the initial level.
	Battery int `json:"battery"`
}

// ItemConfig declares an unassigned pool entry registered at startup.
type ItemConfig struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Config holds the fleet thresholds and seed data.
type Config struct {
	LowBattery   int           `json:"low_battery"`
	ChargeStep   int           `json:"charge_step"`
	TickInterval time.Duration `json:"tick_interval"`
	QueueTimeout time.Duration `json:"queue_timeout"`
	// Stations replaces the three default stations when non-empty.
	Stations []StationConfig `json:"stations"`
	Vehicles []VehicleConfig `json:"vehicles"`
	Items    []ItemConfig    `json:"items"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.LowBattery <= 0 {
		c.LowBattery = model.LowBatteryPct
	}
	if c.ChargeStep <= 0 {
		c.ChargeStep = vehicle.DefaultChargeStep
	}
	if c.TickInterval <= 0 {
		c.TickInterval = vehicle.DefaultTickInterval
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = charging.DefaultQueueTimeout
	}
	if len(c.Stations) == 0 {
		for _, st := range model.DefaultStations() {
			c.Stations = append(c.Stations, StationConfig{ID: st.ID(), Name: st.Name()})
		}
	}
	for i := range c.Vehicles {
		if c.Vehicles[i].Battery == 0 {
			c.Vehicles[i].Battery = model.InitialBatteryPct
		}
	}
}

// Validate checks thresholds and seed entries.
func (c Config) Validate() error {
	if c.LowBattery >= model.FullBatteryPct {
		return fmt.Errorf("low_battery must be below %d", model.FullBatteryPct)
	}
	if c.ChargeStep > model.FullBatteryPct {
		return fmt.Errorf("charge_step must be at most %d", model.FullBatteryPct)
	}
	seen := map[string]bool{}
	for _, st := range c.Stations {
		if strings.TrimSpace(st.ID) == "" || strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("station id and name are required")
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate station %s", st.ID)
		}
		seen[st.ID] = true
	}
	seen = map[string]bool{}
	for _, v := range c.Vehicles {
		if strings.TrimSpace(v.ID) == "" || strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("vehicle id and name are required")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate vehicle %s", v.ID)
		}
		seen[v.ID] = true
		if v.Battery < 0 || v.Battery > model.FullBatteryPct {
			return fmt.Errorf("vehicle %s: battery %d out of range", v.ID, v.Battery)
		}
	}
	for _, it := range c.Items {
		if _, err := model.NewItem(it.SKU, it.Name, it.Quantity); err != nil {
			return fmt.Errorf("item %s: %w", it.SKU, err)
		}
	}
	return nil
}
