package models

import "time"

// Event types recorded in the system event log.
const (
	EventReload      = "RELOAD"
	EventBrokerUp    = "BROKER_UP"
	EventBrokerDown  = "BROKER_DOWN"
	EventDiscovered  = "DISCOVERED"
	EventConfigError = "CONFIG_ERROR"
)

// SystemEvent is a single operational log entry: topology reloads, broker
// connectivity transitions, discovery sightings. Panel telemetry itself is
// never recorded here.
type SystemEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
