package discovery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"solarview/internal/models"
)

// labelPattern is the gateway label grammar: one or more letters followed by
// one or more digits, nothing else.
var labelPattern = regexp.MustCompile(`^([A-Za-z]+)([0-9]+)$`)

// ParseDeviceLabel splits a raw gateway label into its string name and
// position. The name is normalized to uppercase and the position read as a
// plain integer, so "a01" parses to ("A", 1). Reports false for anything
// outside the letters-then-digits grammar.
func ParseDeviceLabel(label string) (name string, position int, ok bool) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return "", 0, false
	}
	position, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return strings.ToUpper(m[1]), position, true
}

// MatchDiscoveredPanel classifies a discovered panel against the expected
// topology. Deterministic and side-effect free. The check order is
// load-bearing:
//
//  1. a serial already present in the known panels wins outright,
//  2. an operator-supplied label translation rewrites the raw label,
//  3. an unparseable label stops matching with a format error,
//  4. the reporting system's own topology is consulted before any other,
//  5. a hit in a different system is reported as a possible wiring issue,
//     never silently corrected,
//  6. otherwise the operator must add a label translation.
func MatchDiscoveredPanel(
	discovered models.DiscoveredPanel,
	systems []models.SystemTopology,
	known []models.TopologyEntry,
	translations map[string]string,
) models.MatchResult {
	for i := range known {
		if known[i].Serial == discovered.Serial {
			return models.MatchResult{
				Status:     models.MatchStatusMatched,
				Panel:      &known[i],
				Confidence: models.ConfidenceHigh,
			}
		}
	}

	label := discovered.DeviceLabel
	if translated, ok := translations[label]; ok {
		label = translated
	}

	stringName, position, ok := ParseDeviceLabel(label)
	if !ok {
		return models.MatchResult{
			Status:      models.MatchStatusUnmatched,
			DeviceLabel: discovered.DeviceLabel,
			Error:       "invalid label format, expected a pattern like 'A1' or 'AA12'",
		}
	}

	if systemHasSlot(systems, discovered.System, stringName, position) {
		return models.MatchResult{
			Status:         models.MatchStatusMatched,
			SuggestedLabel: label,
			Confidence:     models.ConfidenceMedium,
			DeviceLabel:    discovered.DeviceLabel,
		}
	}

	for _, sys := range systems {
		if sys.Name == discovered.System {
			continue
		}
		if systemHasSlot(systems, sys.Name, stringName, position) {
			return models.MatchResult{
				Status:         models.MatchStatusWiringIssue,
				DeviceLabel:    discovered.DeviceLabel,
				ReportedSystem: discovered.System,
				ExpectedSystem: sys.Name,
				Warning: fmt.Sprintf(
					"panel reports from %q but string %q is configured on %q",
					discovered.System, stringName, sys.Name),
			}
		}
	}

	return models.MatchResult{
		Status:           models.MatchStatusUnmatched,
		DeviceLabel:      discovered.DeviceLabel,
		NeedsTranslation: true,
	}
}

// systemHasSlot reports whether the named system declares a string with the
// given name whose panel count covers the position.
func systemHasSlot(systems []models.SystemTopology, system, stringName string, position int) bool {
	for _, sys := range systems {
		if sys.Name != system {
			continue
		}
		for _, st := range sys.Strings {
			if st.Name == stringName && position <= st.PanelCount {
				return true
			}
		}
	}
	return false
}
