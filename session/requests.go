package session

import (
	"fmt"

	"go.uber.org/zap"

	"go-emtrack/fulfillment"
	"go-emtrack/scenario"
	"go-emtrack/types"
)

// EditResult is the outcome of one edit. Warnings are non-fatal: coerced
// input, frozen fields, or references missing from the catalog.
type EditResult struct {
	Record     types.RequestRecord    `json:"record"`
	Status     types.ETAStatus        `json:"status"`
	Transition fulfillment.Transition `json:"transition,omitempty"`
	Warnings   []error                `json:"-"`
}

// AddRequest appends a blank pending record. The first record of a scenario
// stamps its start time.
func (s *Session) AddRequest() types.RequestRecord {
	s.mu.Lock()
	now := s.now()
	rec := fulfillment.NewRequest(s.newID(), now)
	s.sc.Requests = append(s.sc.Requests, rec)
	if s.sc.StartTime == "" {
		s.sc.StartTime = fulfillment.FormatHM(now)
	}
	s.statuses[rec.ID] = types.ETANone
	s.mu.Unlock()

	s.autosave.OnMutation()
	return rec.Clone()
}

// EditRequest applies a patch to one record.
func (s *Session) EditRequest(id string, p fulfillment.Patch) (EditResult, error) {
	s.mu.Lock()
	i := scenario.Find(s.sc, id)
	if i < 0 {
		s.mu.Unlock()
		return EditResult{}, fmt.Errorf("request %s: %w", id, types.ErrRequestNotFound)
	}
	if err := checkPartialIndex(s.sc.Requests[i], p); err != nil {
		s.mu.Unlock()
		return EditResult{}, err
	}
	env := fulfillment.Env{Now: s.now(), SpeedKmh: s.speedKmh, Sources: s.selectorLocked()}
	out, fx := fulfillment.ApplyEdit(s.sc.Requests[i], p, env)
	s.sc.Requests[i] = out
	if fx.Reclassify {
		s.statuses[id] = fulfillment.Classify(out, env.Now)
	}
	status := s.statuses[id]
	s.mu.Unlock()

	if fx.Transition != fulfillment.NoTransition {
		trigger := "auto"
		if fx.Explicit {
			trigger = "explicit"
		}
		s.metrics.Transitions.WithLabelValues(string(fx.Transition), trigger).Inc()
		s.log.Info("request transition",
			zap.String("id", id),
			zap.String("transition", string(fx.Transition)),
			zap.String("trigger", trigger))
	}
	for _, w := range fx.Warnings {
		if d, ok := w.(*types.DriftError); ok {
			s.notifyDrift(d)
			continue
		}
		s.log.Debug("edit warning", zap.String("id", id), zap.Error(w))
	}
	if fx.ScheduleAutosave() {
		s.autosave.OnMutation()
	}
	return EditResult{Record: out.Clone(), Status: status, Transition: fx.Transition, Warnings: fx.Warnings}, nil
}

// checkPartialIndex rejects updates and removals of partials the record does
// not have. Patches that also add a partial are left to the engine.
func checkPartialIndex(rec types.RequestRecord, p fulfillment.Patch) error {
	if p.AddPartial != nil {
		return nil
	}
	var idx []int
	if p.UpdatePartial != nil {
		idx = append(idx, p.UpdatePartial.Index)
	}
	if p.RemovePartial != nil {
		idx = append(idx, *p.RemovePartial)
	}
	for _, i := range idx {
		if i < 0 || i >= len(rec.Partials) {
			return fmt.Errorf("request %s partial %d: %w", rec.ID, i, types.ErrPartialNotFound)
		}
	}
	return nil
}

func (s *Session) ToggleDone(id string, done bool) (EditResult, error) {
	return s.EditRequest(id, fulfillment.Patch{Done: &done})
}

func (s *Session) AddPartial(id string, in fulfillment.PartialInput) (EditResult, error) {
	return s.EditRequest(id, fulfillment.Patch{AddPartial: &in})
}

func (s *Session) UpdatePartial(id string, index int, in fulfillment.PartialInput) (EditResult, error) {
	return s.EditRequest(id, fulfillment.Patch{UpdatePartial: &fulfillment.PartialEdit{Index: index, PartialInput: in}})
}

func (s *Session) RemovePartial(id string, index int) (EditResult, error) {
	return s.EditRequest(id, fulfillment.Patch{RemovePartial: &index})
}

func (s *Session) DeleteRequest(id string) error {
	s.mu.Lock()
	i := scenario.Find(s.sc, id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("request %s: %w", id, types.ErrRequestNotFound)
	}
	s.sc.Requests = append(s.sc.Requests[:i], s.sc.Requests[i+1:]...)
	delete(s.statuses, id)
	s.mu.Unlock()

	s.autosave.OnMutation()
	return nil
}

// Request returns a copy of one record.
func (s *Session) Request(id string) (types.RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := scenario.Find(s.sc, id)
	if i < 0 {
		return types.RequestRecord{}, fmt.Errorf("request %s: %w", id, types.ErrRequestNotFound)
	}
	return s.sc.Requests[i].Clone(), nil
}

// Metadata is a partial update of the scenario header. Nil fields are kept.
type Metadata struct {
	Name         *string `json:"name,omitempty"`
	IncidentType *string `json:"incidentType,omitempty"`
	StartTime    *string `json:"startTime,omitempty"`
	EndTime      *string `json:"endTime,omitempty"`
}

func (s *Session) SetMetadata(m Metadata) {
	s.mu.Lock()
	if m.Name != nil {
		s.sc.Name = scenario.NormalizeName(*m.Name)
	}
	if m.IncidentType != nil {
		s.sc.IncidentType = *m.IncidentType
	}
	if m.StartTime != nil {
		s.sc.StartTime = *m.StartTime
	}
	if m.EndTime != nil {
		s.sc.EndTime = *m.EndTime
	}
	s.mu.Unlock()

	s.autosave.OnMutation()
}

// SetRoster replaces the roster. An empty roster restores the default roles.
func (s *Session) SetRoster(roster []types.RosterEntry) {
	s.mu.Lock()
	if len(roster) == 0 {
		s.sc.Roster = scenario.DefaultRoster()
	} else {
		s.sc.Roster = append([]types.RosterEntry(nil), roster...)
	}
	s.mu.Unlock()

	s.autosave.OnMutation()
}

func (s *Session) Summary() types.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scenario.ComputeSummary(s.sc.Requests, s.now())
}

// Reclassify recomputes every record's ETA status and returns how many
// changed. It runs on the periodic tick.
func (s *Session) Reclassify() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reclassifyLocked()
}

func (s *Session) reclassifyLocked() int {
	next := fulfillment.ClassifyAll(s.sc.Requests, s.now())
	changed := 0
	for id, st := range next {
		if s.statuses[id] != st {
			changed++
		}
	}
	s.statuses = next
	return changed
}

// Statuses returns a copy of the current classification by record id.
func (s *Session) Statuses() map[string]types.ETAStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.ETAStatus, len(s.statuses))
	for id, st := range s.statuses {
		out[id] = st
	}
	return out
}
