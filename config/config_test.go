package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `fleet:
  low_battery: 12
  tick_interval: 10s
  queue_timeout: 5m
  stations:
    - id: S1
      name: Dock
  vehicles:
    - id: V1
      name: Alpha
      battery: 90
  items:
    - sku: SKU-1
      name: Gauze
      quantity: 120
dispatch:
  workers: 4
  auto_delivery_delay: 2s
  skip_manual_autoload: true
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  qos:
    delivery: 1
metrics:
  prometheus_addr: ":9090"
  sinks:
    - type: nop
api:
  addr: ":8080"
  token: secret
logging:
  level: debug
  file: /var/log/medfleet/medfleet.log
monitoring:
  dsn: https://public@example.com/1
  environment: staging
  traces_sample_rate: 0.1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Fleet.LowBattery)
	assert.Equal(t, 12, cfg.Dispatch.LowBattery)
	assert.Equal(t, 10*time.Second, cfg.Fleet.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.Fleet.QueueTimeout)
	require.Len(t, cfg.Fleet.Stations, 1)
	assert.Equal(t, "Dock", cfg.Fleet.Stations[0].Name)
	assert.Equal(t, 90, cfg.Fleet.Vehicles[0].Battery)
	assert.Equal(t, 120, cfg.Fleet.Items[0].Quantity)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.AutoDeliveryDelay)
	assert.Equal(t, 60*time.Second, cfg.Dispatch.ManualDeliveryDelay)
	assert.True(t, cfg.Dispatch.SkipManualAutoLoad)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["delivery"])
	assert.Equal(t, "medfleet", cfg.MQTT.TopicPrefix)
	assert.Equal(t, ":9090", cfg.Metrics.PrometheusAddr)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, "secret", cfg.API.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/medfleet/medfleet.log", cfg.Logging.File)
	assert.Equal(t, 50, cfg.Logging.MaxSizeMB)
	assert.Equal(t, "staging", cfg.Monitoring.Environment)
	assert.InDelta(t, 0.1, cfg.Monitoring.TracesSampleRate, 1e-9)
}

func TestLoadJSONDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"api":{"addr":":8080"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Fleet.Stations, 3)
	assert.Equal(t, "CHG-DEFAULT-1", cfg.Fleet.Stations[0].ID)
	assert.Equal(t, 14, cfg.Fleet.LowBattery)
	assert.Equal(t, 15*time.Minute, cfg.Fleet.QueueTimeout)
	assert.Equal(t, 10, cfg.Dispatch.Workers)
	assert.Equal(t, 50, cfg.Dispatch.MaxUnitsPerTask)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "dispatch:\n  workers: 4\n")
	t.Setenv("MF_DISPATCH__WORKERS", "7")
	t.Setenv("MF_API__TOKEN", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Dispatch.Workers)
	assert.Equal(t, "from-env", cfg.API.Token)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("MF_LOGGING__LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "mqtt:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "broker")

	_, err = Load(writeFile(t, "bad.yaml", "logging:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "dispatch:\n  max_units_per_task: 80\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "fleet:\n  vehicles:\n    - id: V1\n      name: A\n      battery: 140\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "monitoring:\n  traces_sample_rate: 2\n"))
	assert.Error(t, err)
}
