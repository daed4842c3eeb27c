package models

import "time"

// Position places a panel on the layout image, in percent of each axis.
type Position struct {
	XPercent float64 `json:"x_percent" yaml:"x_percent"`
	YPercent float64 `json:"y_percent" yaml:"y_percent"`
}

// PanelState is the merged identity+telemetry view of a single optimizer.
// Telemetry fields are pointers: nil means the value was never reported
// (or was absent from the publisher's latest snapshot).
type PanelState struct {
	DisplayLabel string `json:"display_label"`
	DeviceLabel  string `json:"device_label,omitempty"` // label as the gateway reports it, e.g. "A7"
	String       string `json:"string"`
	System       string `json:"system"`
	Serial       string `json:"sn"`

	// NodeID is the transient id the gateway assigned during enumeration.
	// It arrives via telemetry or via the node-mappings sidecar and may be
	// reassigned at any time.
	NodeID *string `json:"node_id,omitempty"`

	Watts       *float64 `json:"watts,omitempty"`
	VoltageIn   *float64 `json:"voltage_in,omitempty"`
	VoltageOut  *float64 `json:"voltage_out,omitempty"`
	CurrentIn   *float64 `json:"current_in,omitempty"`
	CurrentOut  *float64 `json:"current_out,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	DutyCycle   *float64 `json:"duty_cycle,omitempty"`
	RSSI        *float64 `json:"rssi,omitempty"`
	Energy      *float64 `json:"energy,omitempty"`

	Online      bool `json:"online"`
	Stale       bool `json:"stale"`
	IsTemporary bool `json:"is_temporary"`

	// ActualSystem is the system that actually delivered the last update,
	// which can differ from the topology's nominal owner on miswired sites.
	ActualSystem string     `json:"actual_system,omitempty"`
	LastUpdate   *time.Time `json:"last_update,omitempty"`

	Position Position `json:"position"`
}

// ViewMessage is the state broadcast sent over the viewer push channel and
// returned by the REST fallback.
type ViewMessage struct {
	Timestamp string       `json:"timestamp"`
	Panels    []PanelState `json:"panels"`
}
