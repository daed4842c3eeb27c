package models

// TopologyEntry is one expected panel from the static topology file.
// Immutable between explicit reloads.
type TopologyEntry struct {
	Serial       string   `json:"sn" yaml:"sn"`
	DeviceLabel  string   `json:"device_label" yaml:"device_label"`
	DisplayLabel string   `json:"display_label" yaml:"display_label"`
	String       string   `json:"string" yaml:"string"`
	System       string   `json:"system" yaml:"system"`
	Position     Position `json:"position" yaml:"position"`
}

// StringTopology declares one series string of a system.
type StringTopology struct {
	Name       string `json:"name" yaml:"name"`
	PanelCount int    `json:"panel_count" yaml:"panel_count"`
}

// SystemTopology declares the strings one gateway/controller is expected
// to report for.
type SystemTopology struct {
	Name    string           `json:"name" yaml:"name"`
	Strings []StringTopology `json:"strings" yaml:"strings"`
}

// Topology is the full static description of the expected site: per-system
// string layout plus per-panel identity entries.
type Topology struct {
	Systems []SystemTopology `json:"systems" yaml:"systems"`
	Panels  []TopologyEntry  `json:"panels" yaml:"panels"`

	// Translations maps raw gateway labels to display labels for devices
	// whose label does not follow the letter+number grammar.
	Translations map[string]string `json:"translations,omitempty" yaml:"translations,omitempty"`
}
