package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go-emtrack/fulfillment"
	"go-emtrack/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const catalogA = `LocationName,Category,EntryName,KM
Site A,Water,Depot,15
Site A,Water,Tanker,45
Site A,Medical,Clinic,5
Site B,Food,Warehouse,30
`

const catalogB = `LocationName,Category,EntryName,KM
Site C,Water,River Pump,6
Site D,Food,Market,12
`

type memStore struct {
	mu       sync.Mutex
	autosave *types.Snapshot
	saves    int
	location string
	named    map[string]types.Snapshot
	order    []string
}

func newMemStore() *memStore {
	return &memStore{named: map[string]types.Snapshot{}}
}

func (m *memStore) SaveAutosave(_ context.Context, snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autosave = &snap
	m.saves++
	return nil
}

func (m *memStore) SaveActiveLocation(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = name
	return nil
}

func (m *memStore) LoadAutosave(context.Context) (types.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.autosave == nil {
		return types.Snapshot{}, false, nil
	}
	return *m.autosave, true, nil
}

func (m *memStore) LoadActiveLocation(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location, nil
}

func (m *memStore) SaveNamed(_ context.Context, snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.named[snap.Name]; !ok {
		m.order = append(m.order, snap.Name)
	}
	m.named[snap.Name] = snap
	return nil
}

func (m *memStore) ListNamed(context.Context) ([]types.SavedScenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.SavedScenario
	for _, n := range m.order {
		out = append(out, types.SavedScenario{ID: n, Name: n, Finished: m.named[n].Finished, Origin: types.OriginLocal})
	}
	return out, nil
}

func (m *memStore) LoadNamed(_ context.Context, name string) (types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.named[name]
	if !ok {
		return types.Snapshot{}, types.ErrScenarioNotFound
	}
	return snap, nil
}

func (m *memStore) state() (saves int, snap *types.Snapshot, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.autosave, m.location
}

func (m *memStore) seed(location string, snap types.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = location
	m.autosave = &snap
}

type memArchive struct {
	mu    sync.Mutex
	saved map[string]types.Snapshot
	owner map[string]string
	err   error
}

func newMemArchive() *memArchive {
	return &memArchive{saved: map[string]types.Snapshot{}, owner: map[string]string{}}
}

func (a *memArchive) Save(_ context.Context, owner types.Identity, snap types.Snapshot) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	id := fmt.Sprintf("remote-%d", len(a.saved)+1)
	a.saved[id] = snap
	a.owner[id] = owner.ID
	return id, nil
}

func (a *memArchive) List(_ context.Context, owner types.Identity) ([]types.SavedScenario, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []types.SavedScenario
	for id, snap := range a.saved {
		if a.owner[id] == owner.ID {
			out = append(out, types.SavedScenario{ID: id, Name: snap.Name, Origin: types.OriginRemote})
		}
	}
	return out, nil
}

func (a *memArchive) Load(_ context.Context, owner types.Identity, id string) (types.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.saved[id]
	if !ok || a.owner[id] != owner.ID {
		return types.Snapshot{}, types.ErrScenarioNotFound
	}
	return snap, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	s       *Session
	store   *memStore
	archive *memArchive
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		archive: newMemArchive(),
		clock:   &clock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.Local)},
	}
	n := 0
	f.s = New(Options{
		Store:         f.store,
		Archive:       f.archive,
		AutosaveDelay: 25 * time.Millisecond,
		Now:           f.clock.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("req-%d", n)
		},
	})
	t.Cleanup(func() { _ = f.s.Close() })
	return f
}

func (f *fixture) importCatalog(t *testing.T, text string) ImportResult {
	t.Helper()
	res, err := f.s.ImportCatalog(context.Background(), strings.NewReader(text), "test.csv")
	require.NoError(t, err)
	return res
}

func strp(s string) *string { return &s }

func input(s string) *fulfillment.Input {
	v := fulfillment.Input(s)
	return &v
}

func TestImportCatalog_DefaultsToFirstLocation(t *testing.T) {
	f := newFixture(t)
	res := f.importCatalog(t, catalogA)

	assert.Equal(t, 2, res.Locations)
	assert.Equal(t, 4, res.Sources)
	assert.Equal(t, "Site A", res.ActiveLocation)
	assert.Nil(t, res.Drift)
	assert.Equal(t, []string{"Water", "Medical"}, f.s.Categories())

	_, _, loc := f.store.state()
	assert.Equal(t, "Site A", loc)
}

func TestImportCatalog_SwapDriftsToFirstLocation(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)
	require.NoError(t, f.s.SelectLocation(context.Background(), "Site A"))

	res := f.importCatalog(t, catalogB)
	assert.Equal(t, "Site C", res.ActiveLocation)
	require.NotNil(t, res.Drift)
	assert.Equal(t, "location", res.Drift.Kind)
	assert.Equal(t, "Site A", res.Drift.Name)
	assert.Equal(t, "Site C", res.Drift.Fallback)

	res = f.importCatalog(t, "LocationName,Category,EntryName,KM\n")
	assert.Empty(t, res.ActiveLocation)
	require.NotNil(t, res.Drift)
}

func TestImportCatalog_FailureKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)

	_, err := f.s.LoadCatalog(context.Background(), "/does/not/exist.csv")
	var ie *types.ImportError
	require.ErrorAs(t, err, &ie)

	cat, active := f.s.Catalog()
	assert.Len(t, cat.Locations, 2)
	assert.Equal(t, "Site A", active)
}

func TestSelectLocation_Unknown(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)

	err := f.s.SelectLocation(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, types.ErrUnknownLocation)

	require.NoError(t, f.s.SelectLocation(context.Background(), "Site B"))
	assert.Equal(t, []string{"Food"}, f.s.Categories())
	assert.Len(t, f.s.Sources("Food"), 1)
}

func TestAddRequest_StampsStartTimeOnce(t *testing.T) {
	f := newFixture(t)
	f.s.AddRequest()
	f.clock.Advance(5 * time.Minute)
	f.s.AddRequest()

	snap := f.s.Snapshot()
	require.NotNil(t, snap.StartTime)
	assert.Equal(t, "10:00", *snap.StartTime)
	assert.Len(t, snap.Requests, 2)
}

func TestEditRequest_SourceSelectionClassifies(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)
	rec := f.s.AddRequest()

	res, err := f.s.EditRequest(rec.ID, fulfillment.Patch{
		Item:     strp("Water jugs"),
		Quantity: input("10"),
		Category: strp("Water"),
		Source:   strp("Depot"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10:30", res.Record.ETA)
	assert.Equal(t, types.ETAOnTime, res.Status)

	f.clock.Advance(29 * time.Minute)
	assert.Equal(t, 1, f.s.Reclassify())
	assert.Equal(t, types.ETAApproaching, f.s.Statuses()[rec.ID])

	f.clock.Advance(time.Minute)
	f.s.Reclassify()
	assert.Equal(t, types.ETADue, f.s.Statuses()[rec.ID])
	assert.Equal(t, 1, f.s.Summary().Late)
}

func TestEditRequest_UnknownID(t *testing.T) {
	f := newFixture(t)
	_, err := f.s.EditRequest("missing", fulfillment.Patch{Item: strp("x")})
	assert.ErrorIs(t, err, types.ErrRequestNotFound)
	assert.ErrorIs(t, f.s.DeleteRequest("missing"), types.ErrRequestNotFound)
}

func TestPartials_AutoCompleteAndReopen(t *testing.T) {
	f := newFixture(t)
	rec := f.s.AddRequest()
	_, err := f.s.EditRequest(rec.ID, fulfillment.Patch{Quantity: input("10")})
	require.NoError(t, err)

	_, err = f.s.AddPartial(rec.ID, fulfillment.PartialInput{Quantity: input("4")})
	require.NoError(t, err)
	res, err := f.s.AddPartial(rec.ID, fulfillment.PartialInput{Quantity: input("6")})
	require.NoError(t, err)
	assert.Equal(t, fulfillment.Completed, res.Transition)
	assert.True(t, res.Record.Done)
	assert.Equal(t, "10:00", res.Record.DoneAt)

	res, err = f.s.RemovePartial(rec.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.Reopened, res.Transition)
	assert.False(t, res.Record.Done)
	assert.Empty(t, res.Record.DoneAt)
}

func TestToggleDone_Twice(t *testing.T) {
	f := newFixture(t)
	rec := f.s.AddRequest()

	res, err := f.s.ToggleDone(rec.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "10:00", res.Record.DoneAt)

	res, err = f.s.ToggleDone(rec.ID, false)
	require.NoError(t, err)
	assert.False(t, res.Record.Done)
	assert.Empty(t, res.Record.DoneAt)
}

func TestAutosave_DebouncesToLastState(t *testing.T) {
	f := newFixture(t)
	rec := f.s.AddRequest()
	for i := 1; i <= 6; i++ {
		_, err := f.s.EditRequest(rec.ID, fulfillment.Patch{Remarks: strp(fmt.Sprintf("note %d", i))})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		saves, _, _ := f.store.state()
		return saves == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	saves, snap, _ := f.store.state()
	assert.Equal(t, 1, saves)
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, "note 6", snap.Requests[0].Remarks)
}

func TestNewScenario_DiscardsPendingAutosave(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)
	rec := f.s.AddRequest()
	_, err := f.s.EditRequest(rec.ID, fulfillment.Patch{Item: strp("Tents")})
	require.NoError(t, err)
	f.s.SetMetadata(Metadata{Name: strp("Flood drill")})

	require.NoError(t, f.s.NewScenario(context.Background(), true))

	snap := f.s.Snapshot()
	assert.Empty(t, snap.Requests)
	assert.Equal(t, "Untitled scenario", snap.Name)
	require.NotNil(t, snap.ActiveLocation)
	assert.Equal(t, "Site A", *snap.ActiveLocation)
	assert.Len(t, snap.Roster, 7)

	saved, err := f.store.LoadNamed(context.Background(), "Flood drill (03/14/2025)")
	require.NoError(t, err)
	assert.Len(t, saved.Requests, 1)

	// The next autosave reflects the blank scenario, never the discarded one.
	require.Eventually(t, func() bool {
		_, s, _ := f.store.state()
		return s != nil && s.Name == "Untitled scenario"
	}, time.Second, 5*time.Millisecond)
	_, autosaved, _ := f.store.state()
	assert.Empty(t, autosaved.Requests)
}

func TestLoadScenario_LocationDrift(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)

	gone := "Site Z"
	drifts := f.s.LoadScenario(context.Background(), types.Snapshot{
		Name:           "old",
		ActiveLocation: &gone,
		Requests: []types.RequestRecord{
			{ID: "x", Category: "Water", Source: "Old Well"},
			{ID: "y", Category: "Shelter"},
			{ID: "z", Category: "Water", Source: "Depot"},
		},
	})

	require.Len(t, drifts, 3)
	assert.Equal(t, "location", drifts[0].Kind)
	assert.Equal(t, "Site A", drifts[0].Fallback)
	assert.Equal(t, "source", drifts[1].Kind)
	assert.Equal(t, "category", drifts[2].Kind)

	snap := f.s.Snapshot()
	assert.Equal(t, "Site A", *snap.ActiveLocation)
	assert.Equal(t, "Old Well", snap.Requests[0].Source)
}

func TestLoadScenario_SwitchesToStoredLocation(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)

	loc := "Site B"
	drifts := f.s.LoadScenario(context.Background(), types.Snapshot{Name: "b", ActiveLocation: &loc})
	assert.Empty(t, drifts)

	_, active := f.s.Catalog()
	assert.Equal(t, "Site B", active)
	_, _, persisted := f.store.state()
	assert.Equal(t, "Site B", persisted)
}

func TestFinish_WritesLocalAndRemote(t *testing.T) {
	f := newFixture(t)
	rec := f.s.AddRequest()
	_, err := f.s.EditRequest(rec.ID, fulfillment.Patch{Item: strp("Tents")})
	require.NoError(t, err)
	f.s.SetMetadata(Metadata{Name: strp("Quake drill")})
	f.clock.Advance(90 * time.Minute)

	owner := types.Identity{ID: "u1", Label: "Ops"}
	res, err := f.s.Finish(context.Background(), owner)
	require.NoError(t, err)
	assert.NoError(t, res.ArchiveErr)
	assert.Equal(t, "remote-1", res.ArchiveID)
	assert.True(t, res.Saved.Finished)

	local, err := f.store.LoadNamed(context.Background(), "Quake drill")
	require.NoError(t, err)
	require.NotNil(t, local.EndTime)
	assert.Equal(t, "11:30", *local.EndTime)

	list, err := f.s.ListSaved(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.s.ListSaved(context.Background(), types.Identity{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.s.LoadRemote(context.Background(), types.Identity{ID: "u2"}, "remote-1")
	assert.ErrorIs(t, err, types.ErrScenarioNotFound)
	_, err = f.s.LoadRemote(context.Background(), owner, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, "Tents", f.s.Snapshot().Requests[0].Item)
}

func TestFinish_RemoteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.archive.err = errors.New("unavailable")

	res, err := f.s.Finish(context.Background(), types.Identity{ID: "u1"})
	require.NoError(t, err)
	var pe *types.PersistenceError
	assert.ErrorAs(t, res.ArchiveErr, &pe)
	assert.Empty(t, res.ArchiveID)
}

func TestFinish_NoArchive(t *testing.T) {
	store := newMemStore()
	s := New(Options{Store: store, AutosaveDelay: 10 * time.Millisecond})
	t.Cleanup(func() { _ = s.Close() })

	res, err := s.Finish(context.Background(), types.Identity{ID: "u1"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.ArchiveErr, types.ErrArchiveDisabled)

	_, err = s.LoadRemote(context.Background(), types.Identity{ID: "u1"}, "x")
	assert.ErrorIs(t, err, types.ErrArchiveDisabled)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	f.importCatalog(t, catalogA)
	f.s.autosave.Flush()

	loc := "Site B"
	f.store.seed("Site B", types.Snapshot{
		Name:           "restored",
		ActiveLocation: &loc,
		Requests:       []types.RequestRecord{{ID: "r1", Item: "Rice", ETA: "10:00"}},
	})

	drifts, err := f.s.Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)

	snap := f.s.Snapshot()
	assert.Equal(t, "restored", snap.Name)
	assert.Equal(t, "Site B", *snap.ActiveLocation)
	assert.Equal(t, types.ETADue, f.s.Statuses()["r1"])
}

func TestClose_PersistsUnconditionally(t *testing.T) {
	store := newMemStore()
	s := New(Options{Store: store, AutosaveDelay: time.Hour})
	s.AddRequest()

	require.NoError(t, s.Close())
	saves, snap, _ := store.state()
	assert.Equal(t, 1, saves)
	assert.Len(t, snap.Requests, 1)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	rec := f.s.AddRequest()
	_, err := f.s.EditRequest(rec.ID, fulfillment.Patch{Quantity: input("5"), ETA: strp("10:01")})
	require.NoError(t, err)

	out := f.s.Export()
	assert.Len(t, out.Snapshot.Requests, 1)
	assert.Equal(t, 5, out.Summary.TotalQuantity)
	assert.Equal(t, 1, out.Summary.Approaching)
	assert.Equal(t, types.ETAApproaching, out.Statuses[rec.ID])
}

func TestRestoreBeforeImport_KeepsPersistedLocation(t *testing.T) {
	f := newFixture(t)
	loc := "Site B"
	f.store.seed("Site B", types.Snapshot{
		Name:           "restored",
		ActiveLocation: &loc,
		Requests:       []types.RequestRecord{{ID: "r1", Item: "Rice"}},
	})

	drifts, err := f.s.Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)

	res := f.importCatalog(t, catalogA)
	assert.Equal(t, "Site B", res.ActiveLocation)
	assert.Nil(t, res.Drift)

	_, active := f.s.Catalog()
	assert.Equal(t, "Site B", active)
	_, _, stored := f.store.state()
	assert.Equal(t, "Site B", stored)
}

func TestRestoreBeforeImport_MissingLocationDrifts(t *testing.T) {
	f := newFixture(t)
	f.store.seed("Site Z", types.Snapshot{Name: "restored"})

	_, err := f.s.Restore(context.Background())
	require.NoError(t, err)

	res := f.importCatalog(t, catalogA)
	assert.Equal(t, "Site A", res.ActiveLocation)
	require.NotNil(t, res.Drift)
	assert.Equal(t, "Site Z", res.Drift.Name)

	_, _, stored := f.store.state()
	assert.Equal(t, "Site A", stored)
}

func TestPartialIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	rec := f.s.AddRequest()
	_, err := f.s.AddPartial(rec.ID, fulfillment.PartialInput{})
	require.NoError(t, err)

	_, err = f.s.UpdatePartial(rec.ID, 1, fulfillment.PartialInput{Notes: strp("late")})
	assert.ErrorIs(t, err, types.ErrPartialNotFound)
	_, err = f.s.RemovePartial(rec.ID, -1)
	assert.ErrorIs(t, err, types.ErrPartialNotFound)

	got, err := f.s.Request(rec.ID)
	require.NoError(t, err)
	assert.Len(t, got.Partials, 1)

	_, err = f.s.RemovePartial(rec.ID, 0)
	require.NoError(t, err)
}

// gatedReader blocks its first Read until release is closed.
type gatedReader struct {
	r       io.Reader
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedReader) Read(p []byte) (int, error) {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.r.Read(p)
}

func TestImportCatalog_SerializesOverlappingImports(t *testing.T) {
	f := newFixture(t)
	slow := &gatedReader{
		r:       strings.NewReader(catalogA),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.s.ImportCatalog(context.Background(), slow, "slow.csv")
		assert.NoError(t, err)
	}()
	<-slow.started

	fastDone := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(fastDone)
		_, err := f.s.ImportCatalog(context.Background(), strings.NewReader(catalogB), "fast.csv")
		assert.NoError(t, err)
	}()

	select {
	case <-fastDone:
		t.Fatal("second import finished while the first was still reading")
	case <-time.After(50 * time.Millisecond):
	}
	close(slow.release)
	wg.Wait()

	cat, active := f.s.Catalog()
	assert.True(t, cat.Has("Site C"))
	assert.False(t, cat.Has("Site A"))
	assert.Equal(t, "Site C", active)
}
