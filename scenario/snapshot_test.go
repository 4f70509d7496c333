package scenario

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-emtrack/types"
)

func sampleScenario(n int) types.Scenario {
	created := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	sc := New(created)
	sc.Name = "Flood drill"
	sc.IncidentType = "Flood"
	sc.ActiveLocation = "North Depot"
	sc.StartTime = "08:05"
	sc.Roster[0].Assignment = "R. Santos"
	for i := 0; i < n; i++ {
		rec := types.RequestRecord{
			ID:               string(rune('a' + i)),
			CreatedAt:        created.Add(time.Duration(i) * time.Minute),
			Item:             "Water jugs",
			Quantity:         types.Int(10 + i),
			Category:         "Water",
			Source:           "Depot",
			Remarks:          "gate 2",
			EstimatedMinutes: types.Int(30),
			ETA:              "08:35",
			Partials: []types.PartialDelivery{
				{Quantity: types.Int(4), Time: "08:20", Notes: "first truck"},
				{Quantity: types.Blank, Time: "08:25"},
			},
		}
		if i%2 == 1 {
			rec.Done = true
			rec.DoneAt = "08:40"
		}
		sc.Requests = append(sc.Requests, rec)
	}
	return sc
}

func TestSerialize_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		sc := sampleScenario(n)
		snap := Serialize(sc)

		data, err := Marshal(snap)
		require.NoError(t, err)
		decoded, err := Unmarshal(data)
		require.NoError(t, err)

		again := Serialize(Deserialize(decoded))
		if diff := cmp.Diff(snap, again); diff != "" {
			t.Errorf("n=%d round trip mismatch (-want +got):\n%s", n, diff)
		}
	}
}

func TestSerialize_DoesNotAlias(t *testing.T) {
	sc := sampleScenario(2)
	snap := Serialize(sc)

	snap.Requests[0].Partials[0].Notes = "changed"
	snap.Roster[0].Role = "changed"

	assert.Equal(t, "first truck", sc.Requests[0].Partials[0].Notes)
	assert.Equal(t, "Incident Commander", sc.Roster[0].Role)
}

func TestSerialize_NullableFields(t *testing.T) {
	sc := New(time.Now())
	snap := Serialize(sc)

	assert.Nil(t, snap.ActiveLocation)
	assert.Nil(t, snap.StartTime)
	assert.Nil(t, snap.EndTime)
	assert.Equal(t, UntitledName, snap.Name)
	assert.Equal(t, types.SnapshotVersion, snap.Version)
}

func TestSerialize_StampsResourceLocation(t *testing.T) {
	snap := Serialize(sampleScenario(2))
	for _, r := range snap.Requests {
		assert.Equal(t, "North Depot", r.ResourceLocation)
	}
}

func TestDeserialize_InstallsDefaultRoster(t *testing.T) {
	sc := Deserialize(types.Snapshot{Name: "  "})
	assert.Equal(t, DefaultRoster(), sc.Roster)
	assert.Equal(t, UntitledName, sc.Name)
}

func TestUnmarshal(t *testing.T) {
	snap, err := Unmarshal([]byte(`{"name":"x","requests":[{"id":"r1","quantity":"7","partials":null}]}`))
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotVersion, snap.Version)
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, types.Int(7), snap.Requests[0].Quantity)
	assert.NotNil(t, snap.Requests[0].Partials)

	_, err = Unmarshal([]byte(`{"version":99}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestDatedName(t *testing.T) {
	now := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Flood drill (03/04/2025)", DatedName("Flood drill", now))
	assert.Equal(t, "Untitled scenario (03/04/2025)", DatedName("", now))
}
