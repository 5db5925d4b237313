// Package store persists the active pricing configuration and the append-only
// log of pricing versions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/cabinetry/internal/pricing"
)

// ErrNotFound is returned when a version timestamp does not exist.
var ErrNotFound = errors.New("pricing version not found")

// PersistenceError reports a failed read or write against the underlying storage.
// It is never used for an empty store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err is, or wraps, a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// ConfigStore holds the active RateConfiguration.
type ConfigStore interface {
	// Load returns the persisted configuration merged over the defaults.
	Load(ctx context.Context) (pricing.RateConfiguration, error)
	// Save merges partial over the current state, persists it and returns the new effective state.
	Save(ctx context.Context, partial pricing.RateConfiguration) (pricing.RateConfiguration, error)
}

// VersionLog is the append-only list of pricing snapshots.
type VersionLog interface {
	Record(ctx context.Context, cfg pricing.RateConfiguration, prefill pricing.Prefill) (Snapshot, error)
	// List returns every snapshot, most recent first.
	List(ctx context.Context) ([]Snapshot, error)
	Get(ctx context.Context, ts int64) (Snapshot, error)
	// Restore makes the snapshot's configuration the active one, all or nothing.
	Restore(ctx context.Context, ts int64) (pricing.RateConfiguration, error)
}

// Backend is a ConfigStore and VersionLog sharing one storage.
type Backend interface {
	ConfigStore
	VersionLog
}

// Snapshot is one recorded pricing version. TS is epoch milliseconds and
// identifies the snapshot.
type Snapshot struct {
	TS   int64        `json:"ts"`
	Data SnapshotData `json:"data"`
}

// SnapshotData is the configuration at record time plus the calculator state.
type SnapshotData struct {
	pricing.RateConfiguration
	Prefill pricing.Prefill `json:"prefill"`
}

// Time returns the snapshot timestamp as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.TS).UTC()
}

// nextTS returns a timestamp strictly greater than last.
func nextTS(now time.Time, last int64) int64 {
	ts := now.UnixMilli()
	if ts <= last {
		ts = last + 1
	}
	return ts
}
