package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Simplici0/cabinetry/internal/clock"
	"github.com/Simplici0/cabinetry/internal/pricing"
)

const configRowID = 1

// SQLStore keeps the active configuration in the pricing_config singleton row
// and snapshots in pricing_versions. Works with sqlite and postgres.
type SQLStore struct {
	db    *sqlx.DB
	clock clock.Clock
	log   *zap.Logger

	// serializes writers so timestamps stay strictly increasing within the process
	mu sync.Mutex
}

func NewSQLStore(db *sqlx.DB, clk clock.Clock, log *zap.Logger) *SQLStore {
	return &SQLStore{db: db, clock: clk, log: log.Named("store.sql")}
}

func (s *SQLStore) Load(ctx context.Context) (pricing.RateConfiguration, error) {
	cfg, _, err := readConfig(ctx, s.db)
	if err != nil {
		return pricing.RateConfiguration{}, err
	}
	return cfg.WithDefaults(), nil
}

func (s *SQLStore) Save(ctx context.Context, partial pricing.RateConfiguration) (pricing.RateConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pricing.RateConfiguration{}, persistErr("begin save transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, _, err := readConfig(ctx, tx)
	if err != nil {
		return pricing.RateConfiguration{}, err
	}

	next := current.WithDefaults().Merge(partial)
	if err := writeConfig(ctx, tx, next); err != nil {
		return pricing.RateConfiguration{}, err
	}
	if err := tx.Commit(); err != nil {
		return pricing.RateConfiguration{}, persistErr("commit save transaction", err)
	}

	s.log.Info("pricing configuration saved")
	return next.WithDefaults(), nil
}

func (s *SQLStore) Record(ctx context.Context, cfg pricing.RateConfiguration, prefill pricing.Prefill) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Data: SnapshotData{RateConfiguration: cfg.Clone(), Prefill: prefill}}
	payload, err := json.Marshal(snap.Data)
	if err != nil {
		return Snapshot{}, persistErr("encode pricing version", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Snapshot{}, persistErr("begin record transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	if err := tx.GetContext(ctx, &last, `SELECT COALESCE(MAX(ts), 0) FROM pricing_versions`); err != nil {
		return Snapshot{}, persistErr("query latest pricing version", err)
	}
	snap.TS = nextTS(s.clock.Now(), last)

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO pricing_versions (ts, data)
		VALUES (?, ?)
	`), snap.TS, string(payload)); err != nil {
		return Snapshot{}, persistErr("insert pricing version", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, persistErr("commit record transaction", err)
	}

	s.log.Info("pricing version recorded", zap.Int64("ts", snap.TS))
	return snap, nil
}

type versionRow struct {
	TS   int64  `db:"ts"`
	Data string `db:"data"`
}

func (s *SQLStore) List(ctx context.Context) ([]Snapshot, error) {
	var rows []versionRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT ts, data
		FROM pricing_versions
		ORDER BY ts DESC
	`); err != nil {
		return nil, persistErr("query pricing versions", err)
	}

	snapshots := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := row.decode()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (s *SQLStore) Get(ctx context.Context, ts int64) (Snapshot, error) {
	return getVersion(ctx, s.db, ts)
}

func (s *SQLStore) Restore(ctx context.Context, ts int64) (pricing.RateConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pricing.RateConfiguration{}, persistErr("begin restore transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap, err := getVersion(ctx, tx, ts)
	if err != nil {
		return pricing.RateConfiguration{}, err
	}
	if err := writeConfig(ctx, tx, snap.Data.RateConfiguration); err != nil {
		return pricing.RateConfiguration{}, err
	}
	if err := tx.Commit(); err != nil {
		return pricing.RateConfiguration{}, persistErr("commit restore transaction", err)
	}

	s.log.Info("pricing version restored", zap.Int64("ts", ts))
	return snap.Data.RateConfiguration.WithDefaults(), nil
}

// queryer is satisfied by *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// readConfig returns the stored configuration as persisted (without defaults)
// and whether a row exists.
func readConfig(ctx context.Context, q queryer) (pricing.RateConfiguration, bool, error) {
	var data string
	err := q.GetContext(ctx, &data, q.Rebind(`SELECT data FROM pricing_config WHERE id = ?`), configRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.RateConfiguration{}, false, nil
	}
	if err != nil {
		return pricing.RateConfiguration{}, false, persistErr("query pricing_config", err)
	}

	var cfg pricing.RateConfiguration
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return pricing.RateConfiguration{}, false, persistErr("decode pricing_config", err)
	}
	return cfg, true, nil
}

func writeConfig(ctx context.Context, q queryer, cfg pricing.RateConfiguration) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return persistErr("encode pricing_config", err)
	}

	if _, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO pricing_config (id, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`), configRowID, string(payload)); err != nil {
		return persistErr("upsert pricing_config", err)
	}
	return nil
}

func getVersion(ctx context.Context, q queryer, ts int64) (Snapshot, error) {
	var row versionRow
	err := q.GetContext(ctx, &row, q.Rebind(`
		SELECT ts, data
		FROM pricing_versions
		WHERE ts = ?
	`), ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("ts %d: %w", ts, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, persistErr("query pricing version", err)
	}
	return row.decode()
}

func (r versionRow) decode() (Snapshot, error) {
	snap := Snapshot{TS: r.TS}
	if err := json.Unmarshal([]byte(r.Data), &snap.Data); err != nil {
		return Snapshot{}, persistErr(fmt.Sprintf("decode pricing version %d", r.TS), err)
	}
	return snap, nil
}
