// Package sink declares the collaborators the coordinator writes to: the
// operator event log and the delivery destination.
package sink

// EventLog receives operator-facing log lines. Implementations must not block
// for long and must swallow their own failures.
type EventLog interface {
	LogVehicle(name, message string)
	LogCharging(label, message string)
	LogSystem(message string)
}

// Destination records completed deliveries. A returned error leaves the
// delivering task in its previous state.
type Destination interface {
	RecordDelivery(vehicleName, itemName string, quantity int) error
}

// NopEventLog discards every entry.
type NopEventLog struct{}

func (NopEventLog) LogVehicle(string, string)  {}
func (NopEventLog) LogCharging(string, string) {}
func (NopEventLog) LogSystem(string)           {}

// NopDestination accepts every delivery.
type NopDestination struct{}

func (NopDestination) RecordDelivery(string, string, int) error { return nil }
