package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	maxMsgSize = 1 << 12 // 4 KB
)

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// wsPanels serves the viewer push channel: the connection is registered with
// the delivery manager, receives an immediate full snapshot, then lives off
// the batch and heartbeat cycles. All writes, the initial snapshot included,
// go through the manager's per-connection serialization. Inbound messages
// are drained and treated as liveness acknowledgments only.
func (h *Handler) wsPanels(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	conn.SetReadLimit(maxMsgSize)

	h.hub.Connect(conn)
	defer h.hub.Disconnect(conn)

	if err := h.hub.SendState(conn, h.services.Panels.Snapshot()); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// wsDiscovery streams setup-flow events (panel_discovered, panel_updated,
// connection_status) to the wizard UI. This connection is not registered
// with the delivery manager; the select loop below is its only writer.
func (h *Handler) wsDiscovery(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxMsgSize)

	events, unsubscribe := h.services.Discovery.Subscribe()
	defer unsubscribe()

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				if h.log != nil {
					h.log.Infow("ws_discovery_write_failed", "err", err)
				}
				return
			}
		}
	}
}
