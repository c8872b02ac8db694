package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vonshlovens/fieldguide/internal/config"
	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/library"
	"github.com/vonshlovens/fieldguide/internal/source"
	"github.com/vonshlovens/fieldguide/internal/telemetry"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "fieldguide",
		Short:   "Offline radio manuals and field checklists",
		Long:    `Imports radio manual content and checklist templates into a local store for offline browsing, search and field checklists.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		initCmd(),
		migrateCmd(),
		importCmd(),
		importManualCmd(),
		checklistsCmd(),
		searchCmd(),
		favoriteCmd(),
		statusCmd(),
		exportCmd(),
		manifestCmd(),
		watchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what most commands need
type app struct {
	cfg *config.Config
	db  *db.DB
	src *source.Source
	lib *library.Library
}

// openApp loads configuration, starts telemetry and opens the migrated store
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := telemetry.Init(ctx, cfg.Telemetry, "fieldguide", version); err != nil {
		slog.Warn("telemetry disabled", "error", err)
	}

	database, err := db.New(ctx, &cfg.Database,
		db.WithRetryMaxElapsed(time.Duration(cfg.Import.RetryMaxElapsedMs)*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.RunMigrations(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &app{
		cfg: cfg,
		db:  database,
		src: source.New(cfg),
		lib: library.New(database),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
}
