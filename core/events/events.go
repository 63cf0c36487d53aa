package events

import "time"

// Channel identifies which operator log a LogEvent belongs to.
type Channel string

const (
	ChannelVehicle  Channel = "vehicle"
	ChannelCharging Channel = "charging"
	ChannelSystem   Channel = "system"
)

// LogEvent mirrors one line written to the event log.
type LogEvent struct {
	Channel Channel
	Subject string // vehicle name, station name or "QUEUE"
	Message string
	Time    time.Time
}

// ChargeAction describes a charging state change.
type ChargeAction string

const (
	ChargeQueued   ChargeAction = "queued"
	ChargeStarted  ChargeAction = "started"
	ChargeFinished ChargeAction = "finished"
	ChargeEvicted  ChargeAction = "evicted"
)

// ChargeEvent is published by the charging coordinator and vehicles.
type ChargeEvent struct {
	VehicleID string
	StationID string
	Action    ChargeAction
	Battery   int
	Waitlist  int
	Time      time.Time
}

// DeliveryEvent is published once per delivery simulation.
type DeliveryEvent struct {
	TaskID    string
	VehicleID string
	SKU       string
	Quantity  int
	Auto      bool
	Battery   int
	Err       error
	Time      time.Time
}

// TaskEvent is published when a task is created or its status changes.
type TaskEvent struct {
	TaskID    string
	VehicleID string
	Status    string
	Origin    string // "manual", "manual_item", "auto"
	Time      time.Time
}
