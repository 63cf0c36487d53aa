// Package infra contains technical adapters: the MQTT delivery destination,
// metrics exporters, the operator event log, Sentry reporting and the
// zerolog logger. These packages depend only on interfaces defined in core.
package infra
