package types

import "time"

type RosterEntry struct {
	Role       string `json:"role" firestore:"role"`
	Assignment string `json:"assignment" firestore:"assignment"`
}

// Scenario is the working set owned by the active editing session. An empty
// ActiveLocation, StartTime or EndTime means unset.
type Scenario struct {
	Name           string
	CreatedAt      time.Time
	IncidentType   string
	ActiveLocation string
	StartTime      string
	EndTime        string
	Finished       bool
	Roster         []RosterEntry
	Requests       []RequestRecord
}

// SnapshotVersion is bumped when the snapshot layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the persistable form of a Scenario, exchanged with the local
// store, the remote archive and the export collaborator.
type Snapshot struct {
	Version        int             `json:"version"`
	Name           string          `json:"name"`
	CreatedAt      time.Time       `json:"createdAt"`
	IncidentType   string          `json:"incidentType"`
	ActiveLocation *string         `json:"activeLocation"`
	StartTime      *string         `json:"startTime"`
	EndTime        *string         `json:"endTime"`
	Finished       bool            `json:"finished"`
	Roster         []RosterEntry   `json:"roster"`
	Requests       []RequestRecord `json:"requests"`
}

// Summary is the aggregate view over a scenario's requests.
type Summary struct {
	TotalRequests int `json:"totalRequests"`
	TotalQuantity int `json:"totalQuantity"`
	Completed     int `json:"completed"`
	Pending       int `json:"pending"`
	OnTime        int `json:"onTime"`
	Approaching   int `json:"approaching"`
	Late          int `json:"late"`
	CompletionPct int `json:"completionPct"`
}

// SavedScenario describes one entry of the named list or the remote archive.
type SavedScenario struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	Finished     bool      `json:"finished"`
	RequestCount int       `json:"requestCount"`
	Origin       string    `json:"origin"`
}

const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// Identity is supplied by the authentication collaborator. It only scopes
// which archived scenarios are visible.
type Identity struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (i Identity) Anonymous() bool {
	return i.ID == ""
}
