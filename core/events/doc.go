// Package events defines the fleet events emitted on the event bus.
//
// Available event types:
//   - LogEvent: an operator-facing log line (vehicle, charging or system)
//   - ChargeEvent: a vehicle started or finished charging, queued or left the queue
//   - DeliveryEvent: a delivery simulation completed or failed
//   - TaskEvent: a task was created or changed status
package events
