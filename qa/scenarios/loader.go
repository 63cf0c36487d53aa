// Package scenarios replays YAML acceptance scenarios against an in-process
// fleet driven by a fake clock.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/medfleet/core/fleet"
)

// Step actions.
const (
	ActionDistribute = "distribute"
	ActionBattery    = "battery"
	ActionTask       = "task"
	ActionStatus     = "status"
	ActionItem       = "item"
	ActionStation    = "station"
	ActionAdvance    = "advance"
)

type Step struct {
	Action   string        `yaml:"action"`
	Batch    string        `yaml:"batch,omitempty"`
	Vehicle  string        `yaml:"vehicle,omitempty"`
	Station  string        `yaml:"station,omitempty"`
	Level    int           `yaml:"level,omitempty"`
	Task     string        `yaml:"task,omitempty"`
	SKU      string        `yaml:"sku,omitempty"`
	Name     string        `yaml:"name,omitempty"`
	Quantity int           `yaml:"quantity,omitempty"`
	Status   string        `yaml:"status,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
	// ExpectError names the error kind the step must fail with, e.g. not_found.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expected is checked once every step has run. Nil fields are not checked.
type Expected struct {
	Tasks      *int           `yaml:"tasks"`
	Done       *int           `yaml:"done"`
	Delivered  *int           `yaml:"delivered"`
	Unassigned *int           `yaml:"unassigned"`
	Charging   []string       `yaml:"charging"`
	Waiting    []string       `yaml:"waiting"`
	Battery    map[string]int `yaml:"battery"`
}

type Scenario struct {
	Name         string                `yaml:"name"`
	Description  string                `yaml:"description,omitempty"`
	TickInterval time.Duration         `yaml:"tick_interval,omitempty"`
	Stations     []fleet.StationConfig `yaml:"stations,omitempty"`
	Vehicles     []fleet.VehicleConfig `yaml:"vehicles"`
	Items        []fleet.ItemConfig    `yaml:"items,omitempty"`
	Steps        []Step                `yaml:"steps"`
	Expected     Expected              `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	return &sc, nil
}
