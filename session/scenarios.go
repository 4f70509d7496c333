package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"go-emtrack/catalog"
	"go-emtrack/fulfillment"
	"go-emtrack/metrics"
	"go-emtrack/scenario"
	"go-emtrack/types"
)

// Snapshot serializes the working scenario as of now.
func (s *Session) Snapshot() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scenario.Serialize(s.sc)
}

// ExportPayload is everything the export collaborator needs to render a
// report.
type ExportPayload struct {
	Snapshot types.Snapshot             `json:"snapshot"`
	Summary  types.Summary              `json:"summary"`
	Statuses map[string]types.ETAStatus `json:"statuses"`
}

func (s *Session) Export() ExportPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make(map[string]types.ETAStatus, len(s.statuses))
	for id, st := range s.statuses {
		statuses[id] = st
	}
	return ExportPayload{
		Snapshot: scenario.Serialize(s.sc),
		Summary:  scenario.ComputeSummary(s.sc.Requests, s.now()),
		Statuses: statuses,
	}
}

// SaveToList stores an unfinished copy in the named list.
func (s *Session) SaveToList(ctx context.Context) (types.SavedScenario, error) {
	snap := s.Snapshot()
	snap.Finished = false
	if err := s.store.SaveNamed(ctx, snap); err != nil {
		return types.SavedScenario{}, &types.PersistenceError{Op: "save scenario", Err: err}
	}
	s.log.Info("scenario saved", zap.String("name", snap.Name), zap.Int("requests", len(snap.Requests)))
	return savedFrom(snap), nil
}

// FinishResult reports where a finished scenario was written. ArchiveErr is
// set when the remote copy failed; the local copy is still kept.
type FinishResult struct {
	Saved      types.SavedScenario `json:"saved"`
	ArchiveID  string              `json:"archiveId,omitempty"`
	ArchiveErr error               `json:"-"`
}

// Finish stamps the end time, marks the scenario finished and writes it to the
// named list and, when configured, the remote archive under owner.
func (s *Session) Finish(ctx context.Context, owner types.Identity) (FinishResult, error) {
	s.mu.Lock()
	s.sc.EndTime = fulfillment.FormatHM(s.now())
	s.sc.Finished = true
	snap := scenario.Serialize(s.sc)
	s.mu.Unlock()
	s.autosave.OnMutation()

	if err := s.store.SaveNamed(ctx, snap); err != nil {
		return FinishResult{}, &types.PersistenceError{Op: "save scenario", Err: err}
	}
	res := FinishResult{Saved: savedFrom(snap)}

	switch {
	case s.archive == nil:
		res.ArchiveErr = types.ErrArchiveDisabled
	case owner.Anonymous():
		res.ArchiveErr = errors.New("no identity; remote copy skipped")
	default:
		id, err := s.archive.Save(ctx, owner, snap)
		s.metrics.ArchiveWrites.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			res.ArchiveErr = &types.PersistenceError{Op: "archive scenario", Err: err}
			s.log.Error("remote archive failed", zap.String("name", snap.Name), zap.Error(err))
		}
		res.ArchiveID = id
	}
	s.log.Info("scenario finished", zap.String("name", snap.Name), zap.String("archiveId", res.ArchiveID))
	return res, nil
}

// NewScenario discards the working scenario and installs a blank one. When
// saveCurrent is set and the current scenario has requests, it is first
// stored in the named list under a dated name.
func (s *Session) NewScenario(ctx context.Context, saveCurrent bool) error {
	if saveCurrent {
		snap := s.Snapshot()
		if len(snap.Requests) > 0 {
			snap.Name = scenario.DatedName(snap.Name, s.now())
			if err := s.store.SaveNamed(ctx, snap); err != nil {
				return &types.PersistenceError{Op: "save scenario", Err: err}
			}
		}
	}

	s.autosave.Cancel()
	s.mu.Lock()
	active := s.sc.ActiveLocation
	s.sc = scenario.New(s.now())
	s.sc.ActiveLocation = active
	s.statuses = map[string]types.ETAStatus{}
	s.mu.Unlock()

	s.autosave.OnMutation()
	return nil
}

// LoadScenario replaces the working scenario with snap. A pending autosave of
// the old scenario is discarded first. The stored location becomes active if
// the catalog has it; otherwise the current one is kept. Missing references
// are returned as drift notices and the stored text is kept.
func (s *Session) LoadScenario(ctx context.Context, snap types.Snapshot) []*types.DriftError {
	s.autosave.Cancel()

	s.mu.Lock()
	prev := s.sc.ActiveLocation
	sc := scenario.Deserialize(snap)
	var drifts []*types.DriftError
	switch {
	case sc.ActiveLocation == "":
		sc.ActiveLocation = prev
	case !s.catalog.Has(sc.ActiveLocation):
		drifts = append(drifts, &types.DriftError{Kind: "location", Name: sc.ActiveLocation, Fallback: prev})
		sc.ActiveLocation = prev
	}
	s.sc = sc
	drifts = append(drifts, s.referenceDriftLocked()...)
	s.reclassifyLocked()
	active := s.sc.ActiveLocation
	s.mu.Unlock()

	for _, d := range drifts {
		s.notifyDrift(d)
	}
	if active != prev {
		s.persistActive(ctx, active)
	}
	s.autosave.OnMutation()
	return drifts
}

// referenceDriftLocked reports categories and sources of pending records that
// the active location does not offer.
func (s *Session) referenceDriftLocked() []*types.DriftError {
	if s.catalog.Empty() {
		return nil
	}
	sel := s.selectorLocked()
	var out []*types.DriftError
	for _, r := range s.sc.Requests {
		if r.Done || r.Category == "" {
			continue
		}
		if !slices.Contains(sel.Categories(), r.Category) {
			out = append(out, &types.DriftError{Kind: "category", Name: r.Category})
			continue
		}
		if r.Source == "" {
			continue
		}
		if _, ok := sel.Lookup(r.Category, r.Source); !ok {
			out = append(out, &types.DriftError{Kind: "source", Name: r.Source})
		}
	}
	return out
}

func (s *Session) LoadNamed(ctx context.Context, name string) ([]*types.DriftError, error) {
	snap, err := s.store.LoadNamed(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.LoadScenario(ctx, snap), nil
}

func (s *Session) LoadRemote(ctx context.Context, owner types.Identity, id string) ([]*types.DriftError, error) {
	if s.archive == nil {
		return nil, types.ErrArchiveDisabled
	}
	snap, err := s.archive.Load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return s.LoadScenario(ctx, snap), nil
}

// ListSaved returns the local named list followed by the owner's remote
// scenarios. A failing remote listing is logged and left out.
func (s *Session) ListSaved(ctx context.Context, owner types.Identity) ([]types.SavedScenario, error) {
	local, err := s.store.ListNamed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list saved scenarios: %w", err)
	}
	out := append([]types.SavedScenario{}, local...)
	if s.archive == nil || owner.Anonymous() {
		return out, nil
	}
	remote, err := s.archive.List(ctx, owner)
	if err != nil {
		s.log.Warn("remote listing failed", zap.String("owner", owner.ID), zap.Error(err))
		return out, nil
	}
	return append(out, remote...), nil
}

// Restore installs the persisted autosave and active location, if any. It
// does not schedule a save.
func (s *Session) Restore(ctx context.Context) ([]*types.DriftError, error) {
	stored, err := s.store.LoadActiveLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore active location: %w", err)
	}
	snap, ok, err := s.store.LoadAutosave(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore autosave: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var drifts []*types.DriftError
	if stored != "" {
		active, drift := catalog.ResolveActive(s.catalog, stored)
		if s.catalog.Empty() {
			// Nothing to check against yet; keep the stored name.
			active, drift = stored, nil
		}
		s.sc.ActiveLocation = active
		if drift != nil {
			drifts = append(drifts, drift)
		}
	}
	if ok {
		active := s.sc.ActiveLocation
		s.sc = scenario.Deserialize(snap)
		s.sc.ActiveLocation = active
		drifts = append(drifts, s.referenceDriftLocked()...)
	}
	s.reclassifyLocked()
	s.log.Info("session restored",
		zap.Bool("autosave", ok),
		zap.String("active", s.sc.ActiveLocation),
		zap.Int("requests", len(s.sc.Requests)))
	return drifts, nil
}

func savedFrom(snap types.Snapshot) types.SavedScenario {
	return types.SavedScenario{
		ID:           snap.Name,
		Name:         snap.Name,
		CreatedAt:    snap.CreatedAt,
		Finished:     snap.Finished,
		RequestCount: len(snap.Requests),
		Origin:       types.OriginLocal,
	}
}
