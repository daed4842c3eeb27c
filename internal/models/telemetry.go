package models

// TelemetryRecord is one normalized per-device record decoded from a state
// message. Pointer fields are nil when the publisher omitted the attribute.
type TelemetryRecord struct {
	Serial      string   `json:"node_serial"`
	NodeID      *string  `json:"node_id"`
	DeviceLabel string   `json:"node_name"`
	Watts       *float64 `json:"power"`
	VoltageIn   *float64 `json:"voltage_in"`
	VoltageOut  *float64 `json:"voltage_out"`
	CurrentIn   *float64 `json:"current_in"`
	CurrentOut  *float64 `json:"current_out"`
	Temperature *float64 `json:"temperature"`
	DutyCycle   *float64 `json:"duty_cycle"`
	RSSI        *float64 `json:"rssi"`
	Energy      *float64 `json:"energy"`
	Timestamp   *string  `json:"timestamp"`
	StateOnline string   `json:"state_online"`
}

// TelemetryUpdate carries one record into the panel state store. An update is
// a full snapshot of the publisher's last-known values: fields left nil end
// up absent on the panel, they are not preserved from the previous update.
// NodeID is the exception and persists when nil.
type TelemetryUpdate struct {
	Watts       *float64
	VoltageIn   *float64
	VoltageOut  *float64
	CurrentIn   *float64
	CurrentOut  *float64
	Temperature *float64
	DutyCycle   *float64
	RSSI        *float64
	Energy      *float64
	NodeID      *string
	Online      bool
	// ActualSystem is the system whose subscription delivered the record.
	ActualSystem string
}
