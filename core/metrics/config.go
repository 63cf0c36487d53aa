package metrics

import (
	"fmt"
	"time"

	"github.com/kilianp07/medfleet/core/factory"
)

// DefaultSummaryInterval is the period between two fleet summary records.
const DefaultSummaryInterval = time.Minute

// Config defines the metrics sinks and the Prometheus endpoint.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr serves /metrics when non-empty, e.g. ":9090".
	PrometheusAddr  string        `json:"prometheus_addr"`
	SummaryInterval time.Duration `json:"summary_interval"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.SummaryInterval <= 0 {
		c.SummaryInterval = DefaultSummaryInterval
	}
}

// Validate checks that every sink names a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics sink %d: type is required", i)
		}
	}
	return nil
}
