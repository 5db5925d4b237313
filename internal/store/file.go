package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Simplici0/cabinetry/internal/clock"
	"github.com/Simplici0/cabinetry/internal/pricing"
)

const (
	configFileName   = "pricing.json"
	versionsFileName = "pricing_versions.json"
)

// FileStore keeps the configuration and the version log as JSON files in a
// directory. Writes go through a temp file and rename, so a reader never sees
// a half-written file.
type FileStore struct {
	dir   string
	clock clock.Clock
	log   *zap.Logger
	mu    sync.Mutex
}

func NewFileStore(dir string, clk clock.Clock, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{dir: dir, clock: clk, log: log.Named("store.file")}, nil
}

func (s *FileStore) Load(ctx context.Context) (pricing.RateConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.readConfig()
	if err != nil {
		return pricing.RateConfiguration{}, err
	}
	return cfg.WithDefaults(), nil
}

func (s *FileStore) Save(ctx context.Context, partial pricing.RateConfiguration) (pricing.RateConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readConfig()
	if err != nil {
		return pricing.RateConfiguration{}, err
	}

	next := current.WithDefaults().Merge(partial)
	if err := s.writeJSON(configFileName, next); err != nil {
		return pricing.RateConfiguration{}, err
	}

	s.log.Info("pricing configuration saved")
	return next.WithDefaults(), nil
}

func (s *FileStore) Record(ctx context.Context, cfg pricing.RateConfiguration, prefill pricing.Prefill) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.readVersions()
	if err != nil {
		return Snapshot{}, err
	}

	var last int64
	for _, v := range versions {
		if v.TS > last {
			last = v.TS
		}
	}

	snap := Snapshot{
		TS:   nextTS(s.clock.Now(), last),
		Data: SnapshotData{RateConfiguration: cfg.Clone(), Prefill: prefill},
	}
	if err := s.writeJSON(versionsFileName, append(versions, snap)); err != nil {
		return Snapshot{}, err
	}

	s.log.Info("pricing version recorded", zap.Int64("ts", snap.TS))
	return snap, nil
}

func (s *FileStore) List(ctx context.Context) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.readVersions()
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
	}
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, ts int64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.find(ts)
}

func (s *FileStore) Restore(ctx context.Context, ts int64) (pricing.RateConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.find(ts)
	if err != nil {
		return pricing.RateConfiguration{}, err
	}
	if err := s.writeJSON(configFileName, snap.Data.RateConfiguration); err != nil {
		return pricing.RateConfiguration{}, err
	}

	s.log.Info("pricing version restored", zap.Int64("ts", ts))
	return snap.Data.RateConfiguration.WithDefaults(), nil
}

func (s *FileStore) find(ts int64) (Snapshot, error) {
	versions, err := s.readVersions()
	if err != nil {
		return Snapshot{}, err
	}
	for _, v := range versions {
		if v.TS == ts {
			return v, nil
		}
	}
	return Snapshot{}, fmt.Errorf("ts %d: %w", ts, ErrNotFound)
}

func (s *FileStore) readConfig() (pricing.RateConfiguration, error) {
	var cfg pricing.RateConfiguration
	if err := s.readJSON(configFileName, &cfg); err != nil {
		return pricing.RateConfiguration{}, err
	}
	return cfg, nil
}

func (s *FileStore) readVersions() ([]Snapshot, error) {
	var versions []Snapshot
	if err := s.readJSON(versionsFileName, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// readJSON decodes name into dst. A missing file is the empty state, not an error.
func (s *FileStore) readJSON(name string, dst any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return persistErr("read "+name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return persistErr("decode "+name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return persistErr("encode "+name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return persistErr("create temp file for "+name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return persistErr("write "+name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return persistErr("sync "+name, err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr("close "+name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return persistErr("replace "+name, err)
	}
	return nil
}
