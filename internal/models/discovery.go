package models

import "time"

// DiscoveredPanel is a device sighted during the setup/calibration flow.
// Lives only in the discovery session, never in the main state store.
type DiscoveredPanel struct {
	Serial       string    `json:"serial"`
	System       string    `json:"system"`
	DeviceLabel  string    `json:"device_label"`
	Watts        float64   `json:"watts"`
	Voltage      float64   `json:"voltage"`
	DiscoveredAt time.Time `json:"discovered_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// Match result statuses.
const (
	MatchStatusMatched     = "matched"
	MatchStatusUnmatched   = "unmatched"
	MatchStatusWiringIssue = "possible_wiring_issue"
)

// Match confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// MatchResult classifies a discovered panel against the expected topology.
//
// Population by status:
//   - matched/high: Panel set (serial already known)
//   - matched/medium: SuggestedLabel set (new panel placed by topology)
//   - possible_wiring_issue: ReportedSystem, ExpectedSystem, Warning set
//   - unmatched: Error set on label-format failure, otherwise
//     NeedsTranslation is true
type MatchResult struct {
	Status           string         `json:"status"`
	Panel            *TopologyEntry `json:"panel,omitempty"`
	SuggestedLabel   string         `json:"suggested_label,omitempty"`
	Confidence       string         `json:"confidence,omitempty"`
	DeviceLabel      string         `json:"device_label,omitempty"`
	NeedsTranslation bool           `json:"needs_translation"`
	Error            string         `json:"error,omitempty"`
	ReportedSystem   string         `json:"reported_system,omitempty"`
	ExpectedSystem   string         `json:"expected_system,omitempty"`
	Warning          string         `json:"warning,omitempty"`
}
