// Command ingest is the Climatrack admin CLI.
//
// Usage:
//
//	climatrack-ingest tick
//	climatrack-ingest latest --subject 3 --kind weather
//	climatrack-ingest purge --older-than 720h
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/guanacaste-labs/climatrack/internal/config"
	"github.com/guanacaste-labs/climatrack/internal/db"
	"github.com/guanacaste-labs/climatrack/internal/maintenance"
	"github.com/guanacaste-labs/climatrack/internal/provider"
	"github.com/guanacaste-labs/climatrack/internal/record"
	"github.com/guanacaste-labs/climatrack/internal/scheduler"
	"github.com/guanacaste-labs/climatrack/internal/snapshot"
	"github.com/guanacaste-labs/climatrack/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "climatrack-ingest",
		Short: "Climatrack admin CLI",
	}

	root.AddCommand(tickCmd())
	root.AddCommand(latestCmd())
	root.AddCommand(purgeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withPool loads config, connects, runs fn, and cleans up.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

// --------------------------------------------------------------------------
// tick command
// --------------------------------------------------------------------------

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single ingestion pass across all subjects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				recordStore := store.NewPostgres(pool.Pool)
				httpClient := &http.Client{Timeout: 10 * time.Second}
				weather := provider.NewOpenWeather(httpClient, cfg.OpenWeatherAPIKey, cfg.Units)

				source := scheduler.SourceFunc(func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
					return weather.Current(ctx, cfg.DefaultCity, cfg.DefaultCountry)
				})
				sched := scheduler.New(recordStore, source, nil, scheduler.Options{
					Interval:          cfg.FetchInterval,
					TempThreshold:     cfg.TempThreshold,
					HumidityThreshold: cfg.HumidityThreshold,
				}, logger)

				result := sched.RunOnce(ctx)
				logger.Info("Ingestion pass finished", "summary", result.Summary())
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// latest command
// --------------------------------------------------------------------------

func latestCmd() *cobra.Command {
	var subjectID int64
	var kind string
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent record for a subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				recordStore := store.NewPostgres(pool.Pool)
				rec, err := recordStore.Latest(ctx, subjectID, kind)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(rec, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&subjectID, "subject", 0, "Subject id")
	cmd.Flags().StringVar(&kind, "kind", record.KindWeather, "Record kind")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// --------------------------------------------------------------------------
// purge command
// --------------------------------------------------------------------------

func purgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete records older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				cutoff := time.Now().UTC().Add(-olderThan)
				purged, err := maintenance.Purge(ctx, pool.Pool, cutoff)
				if err != nil {
					return err
				}
				logger.Info("Purge finished", "purged", purged, "cutoff", cutoff)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum record age to delete")
	return cmd
}
