package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"go-emtrack/scenario"
	"go-emtrack/types"
)

const (
	keyAutosave       = "autosave"
	keyActiveLocation = "active_location"
)

// LocalStore keeps the current autosave, the active location and the named
// scenario list in a single SQLite file.
type LocalStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

// OpenLocal opens or creates the store at path.
func OpenLocal(path string, log *zap.Logger) (*LocalStore, error) {
	if path == "" {
		path = "emtrack.db"
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS saved_scenarios (
			name TEXT PRIMARY KEY,
			finished INTEGER NOT NULL,
			request_count INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &LocalStore{db: db, log: log.Named("local"), now: time.Now}, nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) put(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, payload) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`, key, payload)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return payload, true, nil
}

func (s *LocalStore) SaveAutosave(ctx context.Context, snap types.Snapshot) error {
	data, err := scenario.Marshal(snap)
	if err != nil {
		return err
	}
	return s.put(ctx, keyAutosave, data)
}

// LoadAutosave returns the current autosave, if one was written.
func (s *LocalStore) LoadAutosave(ctx context.Context) (types.Snapshot, bool, error) {
	data, ok, err := s.get(ctx, keyAutosave)
	if err != nil || !ok {
		return types.Snapshot{}, false, err
	}
	snap, err := scenario.Unmarshal(data)
	if err != nil {
		return types.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *LocalStore) SaveActiveLocation(ctx context.Context, name string) error {
	return s.put(ctx, keyActiveLocation, []byte(name))
}

func (s *LocalStore) LoadActiveLocation(ctx context.Context) (string, error) {
	data, _, err := s.get(ctx, keyActiveLocation)
	return string(data), err
}

// SaveNamed stores snap in the named list, replacing an entry with the same
// name.
func (s *LocalStore) SaveNamed(ctx context.Context, snap types.Snapshot) error {
	data, err := scenario.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_scenarios (name, finished, request_count, created_at, saved_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			finished = excluded.finished,
			request_count = excluded.request_count,
			created_at = excluded.created_at,
			saved_at = excluded.saved_at,
			payload = excluded.payload`,
		snap.Name, snap.Finished, len(snap.Requests), snap.CreatedAt.UnixNano(), s.now().UnixNano(), data)
	if err != nil {
		return fmt.Errorf("save scenario %q: %w", snap.Name, err)
	}
	s.log.Debug("saved scenario", zap.String("name", snap.Name), zap.Bool("finished", snap.Finished))
	return nil
}

// ListNamed returns the named list, most recently saved first.
func (s *LocalStore) ListNamed(ctx context.Context) ([]types.SavedScenario, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, finished, request_count, created_at FROM saved_scenarios ORDER BY saved_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.SavedScenario
	for rows.Next() {
		var (
			sc      types.SavedScenario
			created int64
		)
		if err := rows.Scan(&sc.Name, &sc.Finished, &sc.RequestCount, &created); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sc.ID = sc.Name
		sc.CreatedAt = time.Unix(0, created)
		sc.Origin = types.OriginLocal
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *LocalStore) LoadNamed(ctx context.Context, name string) (types.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM saved_scenarios WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Snapshot{}, fmt.Errorf("scenario %q: %w", name, types.ErrScenarioNotFound)
	}
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("load scenario %q: %w", name, err)
	}
	return scenario.Unmarshal(payload)
}

func (s *LocalStore) DeleteNamed(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_scenarios WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete scenario %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scenario %q: %w", name, types.ErrScenarioNotFound)
	}
	return nil
}
