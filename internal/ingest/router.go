package ingest

import (
	"encoding/json"
	"strings"

	"solarview/internal/logger"
	"solarview/internal/models"
)

// Topic suffixes published by the upstream gateways and the sidecar.
const (
	suffixState        = "/state"
	suffixTempNodes    = "/temp_nodes"
	suffixNodeMappings = "/node_mappings"
)

// Handler receives normalized events demultiplexed from the subscription.
// Implementations must be safe for calls from the broker client's goroutine.
type Handler interface {
	HandleTelemetry(system string, rec models.TelemetryRecord)
	HandleTempNodes(system string, nodeIDs []int)
	HandleNodeMappings(system string, mapping map[string]string)
}

// Router demultiplexes raw broker messages by topic suffix, decodes the
// payload and invokes the handler. Malformed payloads are logged and
// dropped; nothing routed here can terminate the message loop.
type Router struct {
	handler Handler
	log     *logger.Logger
}

func NewRouter(handler Handler, log *logger.Logger) *Router {
	return &Router{handler: handler, log: log}
}

// statePayload is the wire shape of a state message: a map of per-device
// records keyed by an opaque node key.
type statePayload struct {
	Nodes map[string]json.RawMessage `json:"nodes"`
}

// Route dispatches one inbound message.
func (r *Router) Route(topic string, payload []byte) {
	system, ok := systemFromTopic(topic)
	if !ok {
		r.log.Debugw("message on unroutable topic", "topic", topic)
		return
	}

	switch {
	case strings.HasSuffix(topic, suffixState):
		r.routeState(system, payload)
	case strings.HasSuffix(topic, suffixTempNodes):
		r.routeTempNodes(system, payload)
	case strings.HasSuffix(topic, suffixNodeMappings):
		r.routeNodeMappings(system, payload)
	default:
		r.log.Debugw("ignoring message on unknown topic", "topic", topic)
	}
}

func (r *Router) routeState(system string, payload []byte) {
	var sp statePayload
	if err := json.Unmarshal(payload, &sp); err != nil {
		r.log.Errorw("failed to parse state payload", "system", system, "err", err)
		return
	}
	for key, raw := range sp.Nodes {
		var rec models.TelemetryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.log.Debugw("skipping malformed node record", "system", system, "node", key, "err", err)
			continue
		}
		if rec.Serial == "" {
			continue
		}
		if rec.StateOnline == "" {
			rec.StateOnline = "online"
		}
		r.handler.HandleTelemetry(system, rec)
	}
}

func (r *Router) routeTempNodes(system string, payload []byte) {
	var nodeIDs []int
	if err := json.Unmarshal(payload, &nodeIDs); err != nil {
		r.log.Warnw("invalid temp_nodes payload, expected list of ints", "system", system, "err", err)
		return
	}
	r.handler.HandleTempNodes(system, nodeIDs)
}

func (r *Router) routeNodeMappings(system string, payload []byte) {
	var mapping map[string]string
	if err := json.Unmarshal(payload, &mapping); err != nil {
		r.log.Warnw("invalid node_mappings payload, expected object", "system", system, "err", err)
		return
	}
	r.handler.HandleNodeMappings(system, mapping)
}

// systemFromTopic extracts the originating system from the topic's second
// segment, e.g. "taptap/primary/state" -> "primary".
func systemFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
