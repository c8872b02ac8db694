package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vonshlovens/fieldguide/internal/importer"
	"github.com/vonshlovens/fieldguide/internal/watcher"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Import everything, then re-import documents as they change",
		Long:  `Runs a full import, then watches the content directory and the checklist template and re-imports whatever changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sweeper := importer.NewSweeper(a.db, a.src, a.cfg.Import.Concurrency)
			sweeper.SetProgressWriter(os.Stderr)

			slog.Info("performing initial import")
			report, err := sweeper.Run(ctx)
			if report != nil {
				printSweep(report)
			}
			if err != nil {
				// Interrupted before watching started
				return nil
			}

			w, err := watcher.New(a.src, time.Duration(a.cfg.Import.DebounceMs)*time.Millisecond)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}

			fmt.Println("Watching content for changes. Press Ctrl+C to stop.")
			watcher.NewReimporter(a.src, sweeper).Run(ctx, w.Events())

			slog.Info("shutting down...")
			return w.Stop()
		},
	}
}
