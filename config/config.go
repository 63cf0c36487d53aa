// Package config loads the service configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/medfleet/core/dispatch"
	"github.com/kilianp07/medfleet/core/fleet"
	"github.com/kilianp07/medfleet/core/metrics"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/infra/monitoring"
	"github.com/kilianp07/medfleet/infra/mqtt"
)

// EnvPrefix marks environment overrides. MF_DISPATCH__WORKERS=4 sets
// dispatch.workers.
const EnvPrefix = "MF_"

type Config struct {
	Fleet    fleet.Config    `json:"fleet"`
	Dispatch dispatch.Config `json:"dispatch"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Metrics  metrics.Config  `json:"metrics"`
	API      APIConfig       `json:"api"`
	Logging  LoggingConfig   `json:"logging"`
	// Monitoring configures Sentry error reporting.
	Monitoring monitoring.Config `json:"monitoring"`
}

// Load reads path, applies MF_ environment overrides, fills defaults and
// validates every section. An empty path uses defaults and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.Fleet.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Dispatch.LowBattery = c.Fleet.LowBattery
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Fleet.Validate(); err != nil {
		return fmt.Errorf("fleet: %w", err)
	}
	if c.Dispatch.MaxUnitsPerTask > model.MaxUnitsPerTask {
		return fmt.Errorf("dispatch: max_units_per_task must be at most %d", model.MaxUnitsPerTask)
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
