// Package maintenance runs periodic background tasks as Go tickers. The
// only task today is record retention: pruning records older than the
// configured age so the log does not grow without bound.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals and limits.
type Config struct {
	// Retention is the maximum record age. Zero disables cleanup.
	Retention time.Duration

	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration
}

// DefaultConfig returns production defaults for the given retention.
func DefaultConfig(retention time.Duration) Config {
	return Config{
		Retention:       retention,
		CleanupInterval: 30 * time.Minute,
	}
}

// Start launches the maintenance ticker. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	if cfg.Retention <= 0 {
		logger.Info("Record retention disabled")
		return
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Minute
	}

	logger.Info("Maintenance ticker started",
		"retention", cfg.Retention, "interval", cfg.CleanupInterval)

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-cfg.Retention)
			purged, err := Purge(ctx, pool, cutoff)
			if err != nil {
				logger.Warn("Retention sweep failed", "error", err)
			} else if purged > 0 {
				logger.Info("Retention sweep purged records",
					"count", purged, "cutoff", cutoff)
			}
		case <-ctx.Done():
			logger.Info("Maintenance ticker stopped")
			return
		}
	}
}

// Purge deletes all records older than the cutoff and returns the count.
// Also used directly by the ingest CLI purge command.
func Purge(ctx context.Context, pool *pgxpool.Pool, cutoff time.Time) (int64, error) {
	tag, err := pool.Exec(ctx, "purge_records_before", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	return tag.RowsAffected(), nil
}
