// Package metrics declares the sinks fleet events are recorded to. Sinks are
// built from configuration through a factory registry; infra/metrics
// registers the Prometheus and InfluxDB implementations. When more than one
// sink is configured they are combined in a MultiSink.
package metrics
