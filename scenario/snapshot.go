package scenario

import (
	"encoding/json"
	"fmt"

	"go-emtrack/types"
)

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fromOpt(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneRequests(in []types.RequestRecord) []types.RequestRecord {
	out := make([]types.RequestRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func cloneRoster(in []types.RosterEntry) []types.RosterEntry {
	out := make([]types.RosterEntry, len(in))
	copy(out, in)
	return out
}

// Serialize projects sc into a snapshot. Records and roster keep their order
// and share no memory with sc. Each record is stamped with the active
// location it was logged under.
func Serialize(sc types.Scenario) types.Snapshot {
	reqs := cloneRequests(sc.Requests)
	for i := range reqs {
		if sc.ActiveLocation != "" {
			reqs[i].ResourceLocation = sc.ActiveLocation
		}
	}
	return types.Snapshot{
		Version:        types.SnapshotVersion,
		Name:           NormalizeName(sc.Name),
		CreatedAt:      sc.CreatedAt,
		IncidentType:   sc.IncidentType,
		ActiveLocation: optString(sc.ActiveLocation),
		StartTime:      optString(sc.StartTime),
		EndTime:        optString(sc.EndTime),
		Finished:       sc.Finished,
		Roster:         cloneRoster(sc.Roster),
		Requests:       reqs,
	}
}

// Deserialize rebuilds a scenario from a snapshot. A snapshot without a
// roster gets the default one, and nil partial ledgers become empty.
func Deserialize(snap types.Snapshot) types.Scenario {
	sc := types.Scenario{
		Name:           NormalizeName(snap.Name),
		CreatedAt:      snap.CreatedAt,
		IncidentType:   snap.IncidentType,
		ActiveLocation: fromOpt(snap.ActiveLocation),
		StartTime:      fromOpt(snap.StartTime),
		EndTime:        fromOpt(snap.EndTime),
		Finished:       snap.Finished,
		Roster:         cloneRoster(snap.Roster),
		Requests:       cloneRequests(snap.Requests),
	}
	if len(sc.Roster) == 0 {
		sc.Roster = DefaultRoster()
	}
	return sc
}

func Marshal(snap types.Snapshot) ([]byte, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a snapshot. Snapshots newer than this build are refused.
func Unmarshal(data []byte) (types.Snapshot, error) {
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Version > types.SnapshotVersion {
		return types.Snapshot{}, fmt.Errorf("unmarshal snapshot: unsupported version %d", snap.Version)
	}
	if snap.Version == 0 {
		snap.Version = types.SnapshotVersion
	}
	for i := range snap.Requests {
		if snap.Requests[i].Partials == nil {
			snap.Requests[i].Partials = []types.PartialDelivery{}
		}
	}
	return snap, nil
}
