package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"solarview/internal/logger"
	"solarview/internal/models"
)

// Event types pushed to discovery subscribers.
const (
	EventPanelDiscovered  = "panel_discovered"
	EventPanelUpdated     = "panel_updated"
	EventConnectionStatus = "connection_status"
)

// subscriberBuffer is per-subscriber; a subscriber that falls this far
// behind starts losing events rather than blocking ingestion.
const subscriberBuffer = 64

// Event is one discovery notification for the setup-flow UI.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Runner is the transient subscription driving a discovery session. The
// live implementation is a state-only ingest client.
type Runner interface {
	Run(ctx context.Context)
}

// EventRecorder receives operational events worth persisting. Satisfied by
// the application's event log service.
type EventRecorder interface {
	Record(ctx context.Context, typ, description string, metadata any)
}

// ErrAlreadyRunning is returned when a session is started twice.
var ErrAlreadyRunning = errors.New("discovery already running")

// Service tracks panels sighted during an operator-driven setup session in
// a transient map, completely separate from the main state store.
type Service struct {
	log   *logger.Logger
	clock func() time.Time

	// newRunner builds the session's subscription; injected so sessions can
	// run without a broker in tests.
	newRunner func(s *Service) Runner

	// events, when set, records first sightings in the system event log.
	events EventRecorder

	mu      sync.Mutex
	panels  map[string]*models.DiscoveredPanel
	subs    map[chan Event]struct{}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(newRunner func(s *Service) Runner, log *logger.Logger) *Service {
	return &Service{
		log:       log,
		clock:     time.Now,
		newRunner: newRunner,
		panels:    make(map[string]*models.DiscoveredPanel),
		subs:      make(map[chan Event]struct{}),
	}
}

// SetEventRecorder wires the system event log. Called once at startup,
// before any session runs.
func (s *Service) SetEventRecorder(rec EventRecorder) {
	s.mu.Lock()
	s.events = rec
	s.mu.Unlock()
}

// Start begins a discovery session: a transient subscription feeding
// Observe until Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	runner := s.newRunner(s)
	go func() {
		defer close(done)
		runner.Run(runCtx)
	}()
	s.log.Infow("discovery started")
	return nil
}

// Stop ends the session. Discovered panels are kept until Clear so the
// operator can still review them.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Infow("discovery stopped")
}

// Running reports whether a session is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Clear drops every discovered panel, for a session restart.
func (s *Service) Clear() {
	s.mu.Lock()
	s.panels = make(map[string]*models.DiscoveredPanel)
	s.mu.Unlock()
}

// Panels returns a copy of the discovered set.
func (s *Service) Panels() []models.DiscoveredPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DiscoveredPanel, 0, len(s.panels))
	for _, p := range s.panels {
		out = append(out, *p)
	}
	return out
}

// Count returns the number of discovered panels.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panels)
}

// Subscribe registers an event listener. The returned cancel func must be
// called when the listener goes away.
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// emit fans an event out to subscribers without blocking: a full subscriber
// channel drops the event, mirroring the latest-wins policy of the push
// manager.
func (s *Service) emit(ev Event) {
	s.mu.Lock()
	targets := make([]chan Event, 0, len(s.subs))
	for ch := range s.subs {
		targets = append(targets, ch)
	}
	s.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Observe records one sighting. First sighting of a serial emits
// panel_discovered; later sightings refresh telemetry and emit
// panel_updated without re-announcing.
func (s *Service) Observe(system string, rec models.TelemetryRecord) {
	now := s.clock()

	s.mu.Lock()
	p, known := s.panels[rec.Serial]
	if !known {
		p = &models.DiscoveredPanel{
			Serial:       rec.Serial,
			System:       system,
			DeviceLabel:  rec.DeviceLabel,
			Watts:        deref(rec.Watts),
			Voltage:      deref(rec.VoltageIn),
			DiscoveredAt: now,
			LastSeenAt:   now,
		}
		s.panels[rec.Serial] = p
	} else {
		if rec.Watts != nil {
			p.Watts = *rec.Watts
		}
		if rec.VoltageIn != nil {
			p.Voltage = *rec.VoltageIn
		}
		p.LastSeenAt = now
	}
	snapshot := *p
	recorder := s.events
	s.mu.Unlock()

	if !known {
		s.log.Infow("panel discovered", "serial", snapshot.Serial, "label", snapshot.DeviceLabel, "system", system)
		s.emit(Event{Type: EventPanelDiscovered, Data: snapshot})
		if recorder != nil {
			recorder.Record(context.Background(), models.EventDiscovered, "panel discovered", map[string]any{
				"serial": snapshot.Serial,
				"label":  snapshot.DeviceLabel,
				"system": system,
			})
		}
		return
	}
	s.emit(Event{Type: EventPanelUpdated, Data: map[string]any{
		"serial":  snapshot.Serial,
		"watts":   snapshot.Watts,
		"voltage": snapshot.Voltage,
	}})
}

// HandleTelemetry makes Service an ingest handler for its state-only
// subscription.
func (s *Service) HandleTelemetry(system string, rec models.TelemetryRecord) {
	s.Observe(system, rec)
}

// HandleTempNodes is a no-op: the discovery subscription is state-only.
func (s *Service) HandleTempNodes(string, []int) {}

// HandleNodeMappings is a no-op: the discovery subscription is state-only.
func (s *Service) HandleNodeMappings(string, map[string]string) {}

// EmitConnectionStatus forwards broker connectivity transitions to the
// setup-flow UI.
func (s *Service) EmitConnectionStatus(connected bool, err error) {
	data := map[string]any{"status": "connected"}
	if !connected {
		data["status"] = "disconnected"
		if err != nil {
			data["reason"] = err.Error()
		}
	}
	s.emit(Event{Type: EventConnectionStatus, Data: data})
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
