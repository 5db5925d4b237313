package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/cabinetry/internal/pricing"
)

const rateConfigID = 1

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way. It creates the
// pricing_config singleton from the defaults and backfills every default key a
// stored configuration is missing, tier specs included, leaving stored values
// untouched.
func Run(ctx context.Context, db *sqlx.DB) (Stats, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureRateConfig(ctx, tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureRateConfig(ctx context.Context, tx *sqlx.Tx, stats *Stats) error {
	var data string
	err := tx.GetContext(ctx, &data, tx.Rebind(`SELECT data FROM pricing_config WHERE id = ?`), rateConfigID)
	if errors.Is(err, sql.ErrNoRows) {
		return insertRateConfig(ctx, tx, stats)
	}
	if err != nil {
		return fmt.Errorf("check pricing config existence: %w", err)
	}

	var stored pricing.RateConfiguration
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return fmt.Errorf("decode stored pricing config: %w", err)
	}
	if len(stored.MissingKeys()) == 0 {
		return nil
	}

	payload, err := json.Marshal(stored.WithDefaults())
	if err != nil {
		return fmt.Errorf("encode backfilled pricing config: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE pricing_config
		SET data = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`), string(payload), rateConfigID); err != nil {
		return fmt.Errorf("backfill pricing config singleton: %w", err)
	}
	stats.Updates++
	return nil
}

func insertRateConfig(ctx context.Context, tx *sqlx.Tx, stats *Stats) error {
	payload, err := json.Marshal(pricing.DefaultRateConfiguration())
	if err != nil {
		return fmt.Errorf("encode default pricing config: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO pricing_config (id, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`), rateConfigID, string(payload)); err != nil {
		return fmt.Errorf("insert pricing config singleton: %w", err)
	}
	stats.Inserts++
	return nil
}
