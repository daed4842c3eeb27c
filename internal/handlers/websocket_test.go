package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"solarview/internal/models"
	"solarview/internal/service"
)

func wsURL(t *testing.T, srv *httptest.Server, path string) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	u.Scheme = "ws"
	u.Path = path
	return u.String()
}

func TestWebSocket_Panels_InitialSnapshotAndBroadcast(t *testing.T) {
	panels := &mockPanels{snapshot: []models.PanelState{
		{DisplayLabel: "A1", System: "primary", Online: true},
	}}
	hub := newTestHub()
	s := &service.Service{Panels: panels, EventLog: &mockEventLog{}, Discovery: newTestDiscovery()}
	r := newTestRouter(s, hub)

	srv := httptest.NewServer(r)
	defer srv.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(wsURL(t, srv, "/ws/panels"), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	// Initial full snapshot arrives immediately on connect.
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg models.ViewMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if len(msg.Panels) != 1 || msg.Panels[0].DisplayLabel != "A1" {
		t.Fatalf("unexpected snapshot: %+v", msg)
	}

	// Wait for the registry to pick the viewer up, then broadcast.
	deadline := time.Now().Add(time.Second)
	for hub.ConnCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast([]models.PanelState{
		{DisplayLabel: "A1", System: "primary"},
		{DisplayLabel: "A2", System: "primary"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	msg = models.ViewMessage{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if len(msg.Panels) != 2 {
		t.Fatalf("unexpected broadcast: %+v", msg)
	}
}

func TestWebSocket_Panels_DisconnectUnregisters(t *testing.T) {
	hub := newTestHub()
	s := &service.Service{Panels: &mockPanels{}, EventLog: &mockEventLog{}, Discovery: newTestDiscovery()}
	r := newTestRouter(s, hub)

	srv := httptest.NewServer(r)
	defer srv.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(wsURL(t, srv, "/ws/panels"), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ConnCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ConnCount() != 1 {
		t.Fatalf("viewer was not registered")
	}

	_ = conn.Close()
	deadline = time.Now().Add(time.Second)
	for hub.ConnCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ConnCount() != 0 {
		t.Fatalf("viewer still registered after close")
	}
}

func TestWebSocket_Discovery_StreamsEvents(t *testing.T) {
	disc := newTestDiscovery()
	s := &service.Service{Panels: &mockPanels{}, EventLog: &mockEventLog{}, Discovery: disc}
	r := newTestRouter(s, newTestHub())

	srv := httptest.NewServer(r)
	defer srv.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(wsURL(t, srv, "/ws/discovery"), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to subscribe before the sighting.
	time.Sleep(50 * time.Millisecond)
	disc.Observe("primary", models.TelemetryRecord{Serial: "SN-1", DeviceLabel: "A4"})

	type envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if env.Type != "panel_discovered" {
		t.Fatalf("event type: want panel_discovered, got %q", env.Type)
	}
	var p models.DiscoveredPanel
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("unmarshal panel: %v", err)
	}
	if p.Serial != "SN-1" || p.DeviceLabel != "A4" {
		t.Fatalf("unexpected panel: %+v", p)
	}
}
