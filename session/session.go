package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-emtrack/autosave"
	"go-emtrack/catalog"
	"go-emtrack/fulfillment"
	"go-emtrack/metrics"
	"go-emtrack/scenario"
	"go-emtrack/types"
)

// Store is the local persistence the session writes through.
type Store interface {
	autosave.Persister
	LoadAutosave(ctx context.Context) (types.Snapshot, bool, error)
	LoadActiveLocation(ctx context.Context) (string, error)
	SaveNamed(ctx context.Context, snap types.Snapshot) error
	ListNamed(ctx context.Context) ([]types.SavedScenario, error)
	LoadNamed(ctx context.Context, name string) (types.Snapshot, error)
}

// Archive is the optional remote copy of finished scenarios.
type Archive interface {
	Save(ctx context.Context, owner types.Identity, snap types.Snapshot) (string, error)
	List(ctx context.Context, owner types.Identity) ([]types.SavedScenario, error)
	Load(ctx context.Context, owner types.Identity, id string) (types.Snapshot, error)
}

type Options struct {
	Store         Store
	Archive       Archive
	Log           *zap.Logger
	Metrics       *metrics.Metrics
	AutosaveDelay time.Duration
	SpeedKmh      float64
	Now           func() time.Time
	NewID         func() string
}

// Session owns the working scenario together with the process-wide catalog
// and active location. All methods are safe for concurrent use; mutations are
// applied in the order they acquire the lock.
type Session struct {
	// importMu serializes catalog imports end to end.
	importMu sync.Mutex
	mu       sync.Mutex
	catalog  types.Catalog
	sc       types.Scenario
	statuses map[string]types.ETAStatus

	store    Store
	archive  Archive
	autosave *autosave.Scheduler
	log      *zap.Logger
	metrics  *metrics.Metrics
	speedKmh float64
	now      func() time.Time
	newID    func() string
}

func New(opts Options) *Session {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.SpeedKmh <= 0 {
		opts.SpeedKmh = fulfillment.DefaultSpeedKmh
	}
	s := &Session{
		sc:       scenario.New(opts.Now()),
		statuses: map[string]types.ETAStatus{},
		store:    opts.Store,
		archive:  opts.Archive,
		log:      opts.Log.Named("session"),
		metrics:  opts.Metrics,
		speedKmh: opts.SpeedKmh,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	s.autosave = autosave.NewScheduler(opts.AutosaveDelay, s.Snapshot, opts.Store, opts.Log, opts.Metrics)
	return s
}

// ImportResult describes the catalog now in effect.
type ImportResult struct {
	Locations      int               `json:"locations"`
	Sources        int               `json:"sources"`
	ActiveLocation string            `json:"activeLocation"`
	Drift          *types.DriftError `json:"-"`
}

// ImportCatalog parses r and replaces the catalog wholesale. Imports run one
// at a time in arrival order. On failure the previous catalog stays in effect
// and an *types.ImportError is returned.
func (s *Session) ImportCatalog(ctx context.Context, r io.Reader, source string) (ImportResult, error) {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	cat, err := catalog.Parse(r)
	if err != nil {
		var ie *types.ImportError
		if !errors.As(err, &ie) {
			err = &types.ImportError{Source: source, Err: err}
		}
		s.importFailed(source, err)
		return ImportResult{}, err
	}
	return s.installCatalog(ctx, cat, source), nil
}

// LoadCatalog fetches a catalog from a file path or http(s) URL.
func (s *Session) LoadCatalog(ctx context.Context, src string) (ImportResult, error) {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	cat, err := catalog.Fetch(ctx, src)
	if err != nil {
		s.importFailed(src, err)
		return ImportResult{}, err
	}
	return s.installCatalog(ctx, cat, src), nil
}

func (s *Session) importFailed(source string, err error) {
	s.metrics.CatalogImports.WithLabelValues("failed").Inc()
	s.log.Warn("catalog import failed, keeping previous catalog", zap.String("source", source), zap.Error(err))
}

func (s *Session) installCatalog(ctx context.Context, cat types.Catalog, source string) ImportResult {
	s.mu.Lock()
	prev := s.sc.ActiveLocation
	active, drift := catalog.ResolveActive(cat, prev)
	s.catalog = cat
	s.sc.ActiveLocation = active
	s.reclassifyLocked()
	s.mu.Unlock()

	s.metrics.CatalogImports.WithLabelValues("ok").Inc()
	s.log.Info("catalog imported",
		zap.String("source", source),
		zap.Int("locations", len(cat.Locations)),
		zap.Int("sources", cat.SourceCount()),
		zap.String("active", active))
	if drift != nil {
		s.notifyDrift(drift)
	}
	if active != prev {
		s.persistActive(ctx, active)
		s.autosave.OnMutation()
	}
	return ImportResult{
		Locations:      len(cat.Locations),
		Sources:        cat.SourceCount(),
		ActiveLocation: active,
		Drift:          drift,
	}
}

// Catalog returns the catalog in effect and the active location.
func (s *Session) Catalog() (types.Catalog, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog, s.sc.ActiveLocation
}

// SelectLocation makes name the active location. Existing records keep their
// category and source text.
func (s *Session) SelectLocation(ctx context.Context, name string) error {
	s.mu.Lock()
	if !s.catalog.Has(name) {
		s.mu.Unlock()
		return fmt.Errorf("select %q: %w", name, types.ErrUnknownLocation)
	}
	changed := s.sc.ActiveLocation != name
	s.sc.ActiveLocation = name
	s.mu.Unlock()

	if changed {
		s.persistActive(ctx, name)
		s.autosave.OnMutation()
	}
	return nil
}

func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectorLocked().Categories()
}

func (s *Session) Sources(category string) []types.SourceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectorLocked().Sources(category)
}

func (s *Session) selectorLocked() catalog.Selector {
	return catalog.Selector{Catalog: s.catalog, Location: s.sc.ActiveLocation}
}

func (s *Session) persistActive(ctx context.Context, name string) {
	if err := s.store.SaveActiveLocation(ctx, name); err != nil {
		s.log.Error("persist active location failed",
			zap.String("location", name),
			zap.Error(&types.PersistenceError{Op: "active location", Err: err}))
	}
}

func (s *Session) notifyDrift(d *types.DriftError) {
	s.metrics.DriftNotices.WithLabelValues(d.Kind).Inc()
	s.log.Warn("catalog drift", zap.String("kind", d.Kind), zap.String("name", d.Name), zap.String("fallback", d.Fallback))
}

// Close stops the autosave timer and writes a final snapshot.
func (s *Session) Close() error {
	return s.autosave.Close()
}
