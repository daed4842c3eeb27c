package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"solarview/internal/logger"
	"solarview/internal/models"
	"solarview/internal/topology"
)

// reloadTolerance absorbs filesystem-clock jitter on network-mounted storage:
// an mtime that moved by less than this is not treated as a change.
const reloadTolerance = 2 * time.Second

// Options tune a Store.
type Options struct {
	// StaleAfter marks a panel stale once no telemetry arrived for this long.
	StaleAfter time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Store owns the per-panel merged state: static identity from the topology
// source fused with the latest telemetry per device. A single mutex guards
// every map; no critical section spans I/O other than the topology file read
// during a reload.
type Store struct {
	src topology.Source
	log *logger.Logger

	staleAfter time.Duration
	clock      func() time.Time

	mu       sync.Mutex
	topo     *models.Topology
	lastMod  time.Time
	bySerial map[string]models.TopologyEntry
	state    map[string]*models.PanelState // keyed by display label
	lastSeen map[string]time.Time          // display label -> last telemetry time

	// unknownLogged suppresses repeated warnings for serials that have no
	// topology entry.
	unknownLogged map[string]struct{}

	tempNodes    map[string]map[int]struct{} // system -> provisional node ids
	nodeMappings map[string]map[string]string
}

func New(src topology.Source, log *logger.Logger, opts Options) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		src:           src,
		log:           log,
		staleAfter:    opts.StaleAfter,
		clock:         clock,
		bySerial:      make(map[string]models.TopologyEntry),
		state:         make(map[string]*models.PanelState),
		lastSeen:      make(map[string]time.Time),
		unknownLogged: make(map[string]struct{}),
		tempNodes:     make(map[string]map[int]struct{}),
		nodeMappings:  make(map[string]map[string]string),
	}
}

// Load pulls the topology from the source and swaps the active snapshot.
// Telemetry of panels whose display label survives the swap is preserved;
// new labels start with empty telemetry, online and not stale; vanished
// labels are dropped along with their telemetry. On any source error the
// previous topology keeps serving and the error is returned.
func (s *Store) Load() error {
	topo, err := s.src.Load()
	if err != nil {
		return err
	}
	mod, err := s.src.ModTime()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(topo, mod)
	s.log.Infow("topology loaded", "panels", len(topo.Panels), "systems", len(topo.Systems))
	return nil
}

// install swaps the snapshot. Caller holds s.mu.
func (s *Store) install(topo *models.Topology, mod time.Time) {
	s.topo = topo
	s.lastMod = mod

	s.bySerial = make(map[string]models.TopologyEntry, len(topo.Panels))
	next := make(map[string]*models.PanelState, len(topo.Panels))
	nextSeen := make(map[string]time.Time, len(s.lastSeen))

	for _, entry := range topo.Panels {
		s.bySerial[entry.Serial] = entry

		ps := &models.PanelState{
			DisplayLabel: entry.DisplayLabel,
			DeviceLabel:  entry.DeviceLabel,
			String:       entry.String,
			System:       entry.System,
			Serial:       entry.Serial,
			Online:       true,
			Position:     entry.Position,
		}
		if old, ok := s.state[entry.DisplayLabel]; ok {
			ps.NodeID = old.NodeID
			ps.Watts = old.Watts
			ps.VoltageIn = old.VoltageIn
			ps.VoltageOut = old.VoltageOut
			ps.CurrentIn = old.CurrentIn
			ps.CurrentOut = old.CurrentOut
			ps.Temperature = old.Temperature
			ps.DutyCycle = old.DutyCycle
			ps.RSSI = old.RSSI
			ps.Energy = old.Energy
			ps.Online = old.Online
			ps.Stale = old.Stale
			ps.IsTemporary = old.IsTemporary
			ps.ActualSystem = old.ActualSystem
			ps.LastUpdate = old.LastUpdate
			if seen, ok := s.lastSeen[entry.DisplayLabel]; ok {
				nextSeen[entry.DisplayLabel] = seen
			}
		}
		next[entry.DisplayLabel] = ps
	}
	s.state = next
	s.lastSeen = nextSeen
}

// ReloadIfChanged reloads the topology when the source file moved forward by
// more than the tolerance window. Reports whether a reload happened.
func (s *Store) ReloadIfChanged() bool {
	mod, err := s.src.ModTime()
	if err != nil {
		return false
	}

	s.mu.Lock()
	changed := mod.After(s.lastMod.Add(reloadTolerance))
	s.mu.Unlock()
	if !changed {
		return false
	}

	s.log.Infow("topology file changed, reloading")
	if err := s.Load(); err != nil {
		s.log.Errorw("topology reload failed, keeping previous", "err", err)
		return false
	}
	return true
}

// UpdateTelemetry merges one telemetry record into the panel owning the
// serial. Reports false for serials with no topology entry; the warning for
// an unknown serial fires once per serial, not per message.
func (s *Store) UpdateTelemetry(serial string, upd models.TelemetryUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.bySerial[serial]
	if !ok {
		if _, logged := s.unknownLogged[serial]; !logged {
			s.log.Warnw("telemetry for unknown serial", "serial", serial, "system", upd.ActualSystem)
			s.unknownLogged[serial] = struct{}{}
		}
		return false
	}

	now := s.clock()
	label := entry.DisplayLabel
	s.lastSeen[label] = now

	// The node id comes from the sidecar more often than from telemetry;
	// an update without one keeps the panel's current assignment.
	nodeID := upd.NodeID
	if nodeID == nil {
		if old, ok := s.state[label]; ok {
			nodeID = old.NodeID
		}
	}

	s.state[label] = &models.PanelState{
		DisplayLabel: label,
		DeviceLabel:  entry.DeviceLabel,
		String:       entry.String,
		System:       entry.System,
		Serial:       entry.Serial,
		NodeID:       nodeID,
		Watts:        upd.Watts,
		VoltageIn:    upd.VoltageIn,
		VoltageOut:   upd.VoltageOut,
		CurrentIn:    upd.CurrentIn,
		CurrentOut:   upd.CurrentOut,
		Temperature:  upd.Temperature,
		DutyCycle:    upd.DutyCycle,
		RSSI:         upd.RSSI,
		Energy:       upd.Energy,
		Online:       upd.Online,
		Stale:        false,
		IsTemporary:  s.isTemporary(entry.System, nodeID),
		ActualSystem: upd.ActualSystem,
		LastUpdate:   &now,
		Position:     entry.Position,
	}
	return true
}

// UpdateTempNodes replaces the set of provisionally-enumerated node ids for
// a system and recomputes the temporary flag of every panel in that system
// that has a node id.
func (s *Store) UpdateTempNodes(system string, nodeIDs []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[int]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		set[id] = struct{}{}
	}
	s.tempNodes[system] = set
	s.log.Infow("temp nodes updated", "system", system, "count", len(set))

	for _, ps := range s.state {
		if ps.System != system || ps.NodeID == nil {
			continue
		}
		ps.IsTemporary = s.isTemporary(system, ps.NodeID)
	}
}

// UpdateNodeMappings replaces the node-id to serial mapping published by the
// log-scraping sidecar for one system and backfills node ids onto every
// panel whose serial appears in the mapping.
func (s *Store) UpdateNodeMappings(system string, mapping map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodeMappings[system] = mapping

	serialToNode := make(map[string]string, len(mapping))
	for nodeID, serial := range mapping {
		serialToNode[serial] = nodeID
	}

	matched := 0
	for _, ps := range s.state {
		if ps.System != system {
			continue
		}
		nodeID, ok := serialToNode[ps.Serial]
		if !ok {
			continue
		}
		id := nodeID
		ps.NodeID = &id
		ps.IsTemporary = s.isTemporary(system, ps.NodeID)
		matched++
	}
	s.log.Infow("node mappings updated", "system", system, "nodes", len(mapping), "matched", matched)
}

// isTemporary reports whether nodeID is in the system's provisional set.
// Caller holds s.mu. Non-numeric node ids are never temporary.
func (s *Store) isTemporary(system string, nodeID *string) bool {
	if nodeID == nil {
		return false
	}
	id, err := strconv.Atoi(*nodeID)
	if err != nil {
		return false
	}
	_, ok := s.tempNodes[system][id]
	return ok
}

// computeStaleness flags panels whose last telemetry is older than the
// threshold. A panel that never reported is left alone: missing data is a
// distinct condition from stale data. Caller holds s.mu.
func (s *Store) computeStaleness(now time.Time) {
	for label, ps := range s.state {
		seen, ok := s.lastSeen[label]
		if !ok {
			continue
		}
		ps.Stale = now.Sub(seen) > s.staleAfter
	}
}

// Snapshot is the single read path for both the push channel and the REST
// fallback: it folds in any pending topology change, refreshes staleness and
// returns a copy of every panel sorted by display label.
func (s *Store) Snapshot() []models.PanelState {
	s.ReloadIfChanged()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.computeStaleness(s.clock())

	out := make([]models.PanelState, 0, len(s.state))
	for _, ps := range s.state {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayLabel < out[j].DisplayLabel })
	return out
}

// SystemTopologies returns the declared per-system string layout from the
// active topology.
func (s *Store) SystemTopologies() []models.SystemTopology {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topo == nil {
		return nil
	}
	out := make([]models.SystemTopology, len(s.topo.Systems))
	copy(out, s.topo.Systems)
	return out
}

// Translations returns the operator-maintained raw-to-display label map
// from the active topology.
func (s *Store) Translations() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topo == nil || len(s.topo.Translations) == 0 {
		return nil
	}
	out := make(map[string]string, len(s.topo.Translations))
	for raw, display := range s.topo.Translations {
		out[raw] = display
	}
	return out
}

// KnownPanels returns the topology entries of the active snapshot.
func (s *Store) KnownPanels() []models.TopologyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topo == nil {
		return nil
	}
	out := make([]models.TopologyEntry, len(s.topo.Panels))
	copy(out, s.topo.Panels)
	return out
}

// ApplyMockData feeds fixed telemetry into every known panel. Used by the
// mock feed loop when no broker is available.
func (s *Store) ApplyMockData(watts, voltage float64) {
	for _, entry := range s.KnownPanels() {
		w, v := watts, voltage
		s.UpdateTelemetry(entry.Serial, models.TelemetryUpdate{
			Watts:        &w,
			VoltageIn:    &v,
			Online:       true,
			ActualSystem: entry.System,
		})
	}
}
