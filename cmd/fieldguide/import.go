package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vonshlovens/fieldguide/internal/importer"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import every manual, then the checklist template",
		Long: `Imports the content document of every known collection and then the checklist template.
A failing collection is logged and skipped. Ctrl+C stops between collections.`,
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

			report, err := sweeper.Run(ctx)
			if report != nil {
				printSweep(report)
			}
			if err != nil {
				return fmt.Errorf("import interrupted: %w", err)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d collection(s) failed to import", len(report.Failed))
			}
			return nil
		},
	}
}

func printSweep(r *importer.SweepReport) {
	fmt.Printf("%s %d imported\n", okStyle.Render("✓"), len(r.Imported))
	for _, id := range r.Missing {
		fmt.Printf("%s %s: content not found\n", warnStyle.Render("!"), id)
	}

	failed := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Printf("%s %s: %v\n", failStyle.Render("✗"), id, r.Failed[id])
	}

	if len(r.Pending) > 0 {
		fmt.Printf("%s %d not reached\n", mutedStyle.Render("-"), len(r.Pending))
	}

	switch {
	case r.TemplateErr != nil:
		fmt.Printf("%s checklists: %v\n", warnStyle.Render("!"), r.TemplateErr)
	case r.Checklists != nil:
		fmt.Printf("%s checklists: %d created, %d kept\n",
			okStyle.Render("✓"), len(r.Checklists.Created), len(r.Checklists.Existing))
	}
}

func importManualCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-manual <content.json>",
		Short: "Import a single manual content document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			res, err := importer.NewManualImporter(a.db).Import(ctx, importer.ManualDocument{
				Name:   path,
				Data:   data,
				PDFDir: filepath.Dir(path),
			})
			if err != nil {
				return err
			}

			verb := "Updated"
			if res.Created {
				verb = "Created"
			}
			fmt.Printf("%s %s: %d sections, %d blocks\n", verb, res.CollectionID, res.Sections, res.Blocks)
			return nil
		},
	}
}
