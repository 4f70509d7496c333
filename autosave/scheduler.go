package autosave

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-emtrack/metrics"
	"go-emtrack/types"
)

const DefaultDelay = 800 * time.Millisecond

// Persister stores the current autosave snapshot and the active location.
type Persister interface {
	SaveAutosave(ctx context.Context, snap types.Snapshot) error
	SaveActiveLocation(ctx context.Context, name string) error
}

// SnapshotFunc is read when the timer fires, so a save reflects the latest
// state rather than the state at mutation time.
type SnapshotFunc func() types.Snapshot

// Scheduler debounces autosaves. Persistence failures are logged and counted
// and never reach the caller.
type Scheduler struct {
	deb      *Debouncer
	snapshot SnapshotFunc
	store    Persister
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewScheduler(delay time.Duration, snapshot SnapshotFunc, store Persister, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	s := &Scheduler{
		snapshot: snapshot,
		store:    store,
		timeout:  5 * time.Second,
		log:      log.Named("autosave"),
		metrics:  m,
	}
	s.deb = NewDebouncer(delay, func() { s.persist("debounce") })
	return s
}

// OnMutation resets the delay.
func (s *Scheduler) OnMutation() {
	s.deb.Trigger()
}

// Cancel discards a pending save, used before installing a new scenario.
func (s *Scheduler) Cancel() {
	s.deb.Cancel()
}

// Flush saves immediately if a save was pending.
func (s *Scheduler) Flush() bool {
	return s.deb.Flush()
}

func (s *Scheduler) Pending() bool {
	return s.deb.Pending()
}

// Close stops the timer and saves unconditionally, best effort.
func (s *Scheduler) Close() error {
	s.deb.Close()
	return s.persist("close")
}

func (s *Scheduler) persist(trigger string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.PersistenceError{Op: "autosave", Err: fmt.Errorf("panic: %v", r)}
		}
		s.metrics.Autosaves.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			s.log.Error("autosave failed", zap.String("trigger", trigger), zap.Error(err))
		}
	}()

	snap := s.snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.store.SaveAutosave(ctx, snap); err != nil {
		return &types.PersistenceError{Op: "autosave", Err: err}
	}
	loc := ""
	if snap.ActiveLocation != nil {
		loc = *snap.ActiveLocation
	}
	if err := s.store.SaveActiveLocation(ctx, loc); err != nil {
		return &types.PersistenceError{Op: "active location", Err: err}
	}
	s.log.Debug("autosaved", zap.String("trigger", trigger), zap.Int("requests", len(snap.Requests)))
	return nil
}
