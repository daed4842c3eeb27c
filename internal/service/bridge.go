package service

import (
	"solarview/internal/models"
	"solarview/internal/push"
	"solarview/internal/store"
)

// TelemetryBridge wires the ingestion callbacks into the state store and
// queues a broadcast after every mutation. It is the live-mode ingest
// handler.
type TelemetryBridge struct {
	store *store.Store
	hub   *push.Manager
}

func NewTelemetryBridge(st *store.Store, hub *push.Manager) *TelemetryBridge {
	return &TelemetryBridge{store: st, hub: hub}
}

func (b *TelemetryBridge) HandleTelemetry(system string, rec models.TelemetryRecord) {
	upd := models.TelemetryUpdate{
		Watts:        rec.Watts,
		VoltageIn:    rec.VoltageIn,
		VoltageOut:   rec.VoltageOut,
		CurrentIn:    rec.CurrentIn,
		CurrentOut:   rec.CurrentOut,
		Temperature:  rec.Temperature,
		DutyCycle:    rec.DutyCycle,
		RSSI:         rec.RSSI,
		Energy:       rec.Energy,
		NodeID:       rec.NodeID,
		Online:       rec.StateOnline == "online",
		ActualSystem: system,
	}
	if b.store.UpdateTelemetry(rec.Serial, upd) {
		b.hub.QueueUpdate(b.store.Snapshot())
	}
}

func (b *TelemetryBridge) HandleTempNodes(system string, nodeIDs []int) {
	b.store.UpdateTempNodes(system, nodeIDs)
	b.hub.QueueUpdate(b.store.Snapshot())
}

func (b *TelemetryBridge) HandleNodeMappings(system string, mapping map[string]string) {
	b.store.UpdateNodeMappings(system, mapping)
	b.hub.QueueUpdate(b.store.Snapshot())
}
