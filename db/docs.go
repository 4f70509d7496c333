package db

import (
	"slices"
	"time"

	"go-emtrack/types"
)

// ScenarioDoc is the header document of an archived scenario. Requests live in
// the "requests" subcollection and partial deliveries under each request in
// "partials".
type ScenarioDoc struct {
	Version          int                 `firestore:"version"`
	OwnerID          string              `firestore:"ownerId"`
	OwnerLabel       string              `firestore:"ownerLabel"`
	Name             string              `firestore:"name"`
	IncidentType     string              `firestore:"incidentType"`
	ResourceLocation *string             `firestore:"resourceLocation"`
	StartTime        *string             `firestore:"startTime"`
	EndTime          *string             `firestore:"endTime"`
	Finished         bool                `firestore:"finished"`
	CreatedAt        time.Time           `firestore:"createdAt"`
	SavedAt          time.Time           `firestore:"savedAt"`
	RequestCount     int                 `firestore:"requestCount"`
	Roster           []types.RosterEntry `firestore:"roster"`
}

type RequestDoc struct {
	Position         int       `firestore:"position"`
	ID               string    `firestore:"id"`
	CreatedAt        time.Time `firestore:"createdAt"`
	Item             string    `firestore:"item"`
	Quantity         *int      `firestore:"quantity"`
	Category         string    `firestore:"category"`
	Source           string    `firestore:"source"`
	Remarks          string    `firestore:"remarks"`
	EstimatedMinutes *int      `firestore:"estimatedMinutes"`
	ETA              string    `firestore:"eta"`
	Done             bool      `firestore:"done"`
	DoneAt           string    `firestore:"doneAt"`
	ResourceLocation string    `firestore:"resourceLocation"`
}

type PartialDoc struct {
	Position int    `firestore:"position"`
	Quantity *int   `firestore:"quantity"`
	Time     string `firestore:"time"`
	Notes    string `firestore:"notes"`
}

// RequestTree is one request document with its partial documents.
type RequestTree struct {
	Request  RequestDoc
	Partials []PartialDoc
}

// ToDocs splits a snapshot into the three document levels.
func ToDocs(snap types.Snapshot, owner types.Identity, savedAt time.Time) (ScenarioDoc, []RequestTree) {
	header := ScenarioDoc{
		Version:          snap.Version,
		OwnerID:          owner.ID,
		OwnerLabel:       owner.Label,
		Name:             snap.Name,
		IncidentType:     snap.IncidentType,
		ResourceLocation: snap.ActiveLocation,
		StartTime:        snap.StartTime,
		EndTime:          snap.EndTime,
		Finished:         snap.Finished,
		CreatedAt:        snap.CreatedAt,
		SavedAt:          savedAt,
		RequestCount:     len(snap.Requests),
		Roster:           slices.Clone(snap.Roster),
	}

	trees := make([]RequestTree, len(snap.Requests))
	for i, r := range snap.Requests {
		tree := RequestTree{
			Request: RequestDoc{
				Position:         i,
				ID:               r.ID,
				CreatedAt:        r.CreatedAt,
				Item:             r.Item,
				Quantity:         r.Quantity.Ptr(),
				Category:         r.Category,
				Source:           r.Source,
				Remarks:          r.Remarks,
				EstimatedMinutes: r.EstimatedMinutes.Ptr(),
				ETA:              r.ETA,
				Done:             r.Done,
				DoneAt:           r.DoneAt,
				ResourceLocation: r.ResourceLocation,
			},
			Partials: make([]PartialDoc, len(r.Partials)),
		}
		for j, p := range r.Partials {
			tree.Partials[j] = PartialDoc{
				Position: j,
				Quantity: p.Quantity.Ptr(),
				Time:     p.Time,
				Notes:    p.Notes,
			}
		}
		trees[i] = tree
	}
	return header, trees
}

// FromDocs reassembles a snapshot. Requests and partials are ordered by their
// stored position, whatever order they were read in.
func FromDocs(header ScenarioDoc, trees []RequestTree) types.Snapshot {
	trees = slices.Clone(trees)
	slices.SortStableFunc(trees, func(a, b RequestTree) int {
		return a.Request.Position - b.Request.Position
	})

	snap := types.Snapshot{
		Version:        header.Version,
		Name:           header.Name,
		CreatedAt:      header.CreatedAt,
		IncidentType:   header.IncidentType,
		ActiveLocation: header.ResourceLocation,
		StartTime:      header.StartTime,
		EndTime:        header.EndTime,
		Finished:       header.Finished,
		Roster:         slices.Clone(header.Roster),
		Requests:       make([]types.RequestRecord, len(trees)),
	}
	if snap.Version == 0 {
		snap.Version = types.SnapshotVersion
	}
	if snap.Roster == nil {
		snap.Roster = []types.RosterEntry{}
	}

	for i, t := range trees {
		parts := slices.Clone(t.Partials)
		slices.SortStableFunc(parts, func(a, b PartialDoc) int { return a.Position - b.Position })

		rec := types.RequestRecord{
			ID:               t.Request.ID,
			CreatedAt:        t.Request.CreatedAt,
			Item:             t.Request.Item,
			Quantity:         types.FromPtr(t.Request.Quantity),
			Category:         t.Request.Category,
			Source:           t.Request.Source,
			Remarks:          t.Request.Remarks,
			EstimatedMinutes: types.FromPtr(t.Request.EstimatedMinutes),
			ETA:              t.Request.ETA,
			Done:             t.Request.Done,
			DoneAt:           t.Request.DoneAt,
			ResourceLocation: t.Request.ResourceLocation,
			Partials:         make([]types.PartialDelivery, len(parts)),
		}
		for j, p := range parts {
			rec.Partials[j] = types.PartialDelivery{
				Quantity: types.FromPtr(p.Quantity),
				Time:     p.Time,
				Notes:    p.Notes,
			}
		}
		snap.Requests[i] = rec
	}
	return snap
}

// Saved is the listing view of a header document.
func (d ScenarioDoc) Saved(id string) types.SavedScenario {
	return types.SavedScenario{
		ID:           id,
		Name:         d.Name,
		CreatedAt:    d.CreatedAt,
		Finished:     d.Finished,
		RequestCount: d.RequestCount,
		Origin:       types.OriginRemote,
	}
}
