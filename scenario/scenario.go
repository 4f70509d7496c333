package scenario

import (
	"fmt"
	"strings"
	"time"

	"go-emtrack/types"
)

const UntitledName = "Untitled scenario"

var defaultRoles = []string{
	"Incident Commander",
	"Operations Head",
	"Liaison",
	"Logistics",
	"Finance",
	"Planning",
	"PIO",
}

// IncidentTypes are the presets offered to operators. Any other text is
// accepted as a custom type.
var IncidentTypes = []string{"Fire", "Earthquake", "Flood", "Typhoon", "Mass casualty"}

// DefaultRoster returns the command roles with empty assignments.
func DefaultRoster() []types.RosterEntry {
	out := make([]types.RosterEntry, len(defaultRoles))
	for i, r := range defaultRoles {
		out[i] = types.RosterEntry{Role: r}
	}
	return out
}

// New returns an empty scenario with the default roster installed.
func New(now time.Time) types.Scenario {
	return types.Scenario{
		Name:      UntitledName,
		CreatedAt: now,
		Roster:    DefaultRoster(),
		Requests:  []types.RequestRecord{},
	}
}

// NormalizeName trims the name and substitutes the untitled placeholder.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UntitledName
	}
	return name
}

// DatedName is the name used when a scenario is set aside before starting a
// new one, e.g. "Flood drill (03/14/2025)".
func DatedName(name string, now time.Time) string {
	return fmt.Sprintf("%s (%s)", NormalizeName(name), now.Format("01/02/2006"))
}

// Find returns the index of the record with the given id, or -1.
func Find(sc types.Scenario, id string) int {
	for i, r := range sc.Requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}
