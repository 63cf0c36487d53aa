package dispatch

import (
	"time"

	"github.com/kilianp07/medfleet/core/model"
)

const (
	DefaultWorkers             = 10
	DefaultManualDeliveryDelay = 60 * time.Second
	DefaultAutoDeliveryDelay   = 20 * time.Second
	DefaultManualBatteryCost   = 5
	DefaultAutoBatteryCost     = 10
)

// Config defines dispatch-related settings.
type Config struct {
	Workers             int           `json:"workers"`
	ManualDeliveryDelay time.Duration `json:"manual_delivery_delay"`
	AutoDeliveryDelay   time.Duration `json:"auto_delivery_delay"`
	ManualBatteryCost   int           `json:"manual_battery_cost"`
	AutoBatteryCost     int           `json:"auto_battery_cost"`
	MaxUnitsPerTask     int           `json:"max_units_per_task"`
	LowBattery          int           `json:"low_battery"`
	// SkipManualAutoLoad disables loading the first unassigned item when a
	// manual task names an assignee but no SKU.
	SkipManualAutoLoad bool `json:"skip_manual_autoload"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.ManualDeliveryDelay <= 0 {
		c.ManualDeliveryDelay = DefaultManualDeliveryDelay
	}
	if c.AutoDeliveryDelay <= 0 {
		c.AutoDeliveryDelay = DefaultAutoDeliveryDelay
	}
	if c.ManualBatteryCost <= 0 {
		c.ManualBatteryCost = DefaultManualBatteryCost
	}
	if c.AutoBatteryCost <= 0 {
		c.AutoBatteryCost = DefaultAutoBatteryCost
	}
	if c.MaxUnitsPerTask <= 0 {
		c.MaxUnitsPerTask = model.MaxUnitsPerTask
	}
	if c.LowBattery <= 0 {
		c.LowBattery = model.LowBatteryPct
	}
}
