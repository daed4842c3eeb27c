package push

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solarview/internal/logger"
	"solarview/internal/models"
)

// writeWait bounds every write attempt so one hung viewer cannot stall a
// fan-out pass for the others.
const writeWait = 10 * time.Second

var pingPayload = []byte(`{"type":"ping"}`)

// ErrNotRegistered is returned when writing to a connection that was never
// registered or was already removed.
var ErrNotRegistered = errors.New("connection not registered")

// Conn is the slice of *websocket.Conn the manager needs. Kept narrow so
// delivery behavior is testable without a network.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// viewer carries the per-connection write mutex. The websocket library
// allows only one concurrent writer per connection, and the batch loop, the
// heartbeat loop and the reload handler all write independently.
type viewer struct {
	mu sync.Mutex
}

// Manager tracks open viewer connections, coalesces update bursts into one
// broadcast per batch window and probes liveness on a fixed interval. Every
// write to a connection goes through its viewer mutex.
type Manager struct {
	batchInterval     time.Duration
	heartbeatInterval time.Duration
	log               *logger.Logger

	mu      sync.Mutex
	conns   map[Conn]*viewer
	latest  []models.PanelState
	pending bool
}

func NewManager(batchInterval, heartbeatInterval time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		batchInterval:     batchInterval,
		heartbeatInterval: heartbeatInterval,
		log:               log,
		conns:             make(map[Conn]*viewer),
	}
}

// Connect registers a viewer. The caller is expected to send the initial
// full snapshot itself right after registering, via SendState.
func (m *Manager) Connect(c Conn) {
	m.mu.Lock()
	m.conns[c] = &viewer{}
	n := len(m.conns)
	m.mu.Unlock()
	m.log.Infow("viewer connected", "viewers", n)
}

// Disconnect removes a viewer. Safe to call for a connection that was
// already removed.
func (m *Manager) Disconnect(c Conn) {
	m.mu.Lock()
	_, known := m.conns[c]
	delete(m.conns, c)
	n := len(m.conns)
	m.mu.Unlock()
	if known {
		_ = c.Close()
		m.log.Infow("viewer disconnected", "viewers", n)
	}
}

// ConnCount returns the number of registered viewers.
func (m *Manager) ConnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// QueueUpdate stores the snapshot for the next batch cycle. Rapid successive
// updates within one window supersede each other: viewers only ever need the
// current state, not the intermediate ones.
func (m *Manager) QueueUpdate(panels []models.PanelState) {
	m.mu.Lock()
	m.latest = panels
	m.pending = true
	m.mu.Unlock()
}

// encodeState serializes a snapshot into the wire message.
func encodeState(panels []models.PanelState) ([]byte, error) {
	return json.Marshal(models.ViewMessage{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Panels:    panels,
	})
}

// SendState writes a full snapshot to one registered connection through its
// write mutex. Used for the initial snapshot on connect, so it can never
// interleave with a broadcast or heartbeat frame.
func (m *Manager) SendState(c Conn, panels []models.PanelState) error {
	m.mu.Lock()
	v, ok := m.conns[c]
	m.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}

	data, err := encodeState(panels)
	if err != nil {
		return err
	}
	return m.write(c, v, data)
}

// Broadcast serializes the snapshot once and writes it to every viewer. A
// failed write is isolated to its connection: it is logged, delivery to the
// rest continues, and the failing connections are removed after the pass.
func (m *Manager) Broadcast(panels []models.PanelState) {
	data, err := encodeState(panels)
	if err != nil {
		m.log.Errorw("failed to serialize state broadcast", "err", err)
		return
	}
	m.fanOut(data, "state")
}

// write performs one serialized write to a connection.
func (m *Manager) write(c Conn, v *viewer, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, data)
}

// fanOut writes data to every connection, removing failed ones only after
// the full pass so the registry is never mutated mid-iteration.
func (m *Manager) fanOut(data []byte, kind string) {
	type target struct {
		c Conn
		v *viewer
	}
	m.mu.Lock()
	targets := make([]target, 0, len(m.conns))
	for c, v := range m.conns {
		targets = append(targets, target{c, v})
	}
	m.mu.Unlock()

	var failed []Conn
	for _, t := range targets {
		if err := m.write(t.c, t.v, data); err != nil {
			m.log.Warnw("viewer write failed", "kind", kind, "err", err)
			failed = append(failed, t.c)
		}
	}
	for _, c := range failed {
		m.Disconnect(c)
	}
}

// RunBatch flushes the pending snapshot once per batch interval until ctx is
// cancelled.
func (m *Manager) RunBatch(ctx context.Context) {
	t := time.NewTicker(m.batchInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.flushPending()
		}
	}
}

// flushPending broadcasts the latest queued snapshot, if any.
func (m *Manager) flushPending() {
	m.mu.Lock()
	if !m.pending || m.latest == nil {
		m.mu.Unlock()
		return
	}
	panels := m.latest
	m.pending = false
	m.mu.Unlock()

	m.Broadcast(panels)
}

// RunHeartbeat probes every viewer on a fixed interval until ctx is
// cancelled. Write failures are handled like broadcast failures.
func (m *Manager) RunHeartbeat(ctx context.Context) {
	t := time.NewTicker(m.heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.fanOut(pingPayload, "ping")
		}
	}
}
