package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vonshlovens/fieldguide/internal/config"
	"github.com/vonshlovens/fieldguide/internal/db"
	"github.com/vonshlovens/fieldguide/internal/importer"
	"github.com/vonshlovens/fieldguide/internal/source"
)

func initCmd() *cobra.Command {
	var (
		contentDir string
		driver     string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file",
		Long:  `Writes a config file. Prompts for the content directory and store driver unless both are given as flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentDir == "" {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("Content directory").
							Description("Holds one folder per radio with content.json, plus checklists.json").
							Value(&contentDir).
							Validate(func(s string) error {
								if info, err := os.Stat(s); err != nil || !info.IsDir() {
									return fmt.Errorf("not a directory: %s", s)
								}
								return nil
							}),
						huh.NewSelect[string]().
							Title("Store").
							Options(
								huh.NewOption("SQLite file (offline)", "sqlite"),
								huh.NewOption("PostgreSQL", "postgres"),
							).
							Value(&driver),
					),
				)
				if err := form.Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Println("Setup cancelled.")
						return nil
					}
					return err
				}
			}

			abs, err := filepath.Abs(contentDir)
			if err != nil {
				return err
			}

			cfg := config.DefaultConfig()
			cfg.ContentDir = abs
			cfg.Database.Driver = driver
			if driver == "postgres" {
				cfg.Database.Host = "localhost"
				cfg.Database.Port = 5432
				cfg.Database.User = "fieldguide"
				cfg.Database.Password = "${FIELDGUIDE_DATABASE_PASSWORD}"
				cfg.Database.Database = "fieldguide"
				cfg.Database.Schema = config.SanitizeIdentifier("fieldguide_" + filepath.Base(abs))
				cfg.Database.SSLMode = "prefer"
			}

			configPath := cfgFile
			if configPath == "" {
				dir, err := config.GetStateDir()
				if err != nil {
					return err
				}
				configPath = filepath.Join(dir, "config.yaml")
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if err := os.WriteFile(configPath, data, 0600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			fmt.Printf("Config file written to: %s\n", configPath)
			if driver == "postgres" {
				fmt.Println("Edit the database section, then set FIELDGUIDE_DATABASE_PASSWORD.")
			}
			fmt.Println("To import content, run: fieldguide import")
			return nil
		},
	}

	cmd.Flags().StringVar(&contentDir, "content-dir", "", "content directory")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "store driver (sqlite or postgres)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and show their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			statuses, err := a.db.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := warnStyle.Render("pending")
				if s.State == goose.StateApplied {
					state = okStyle.Render("applied " + s.AppliedAt.Format(time.RFC3339))
				}
				fmt.Printf("%05d %-24s %s\n", s.Source.Version, filepath.Base(s.Source.Path), state)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store contents and import history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				fmt.Printf("Database Status: %s\n", failStyle.Render("Disconnected"))
				fmt.Printf("Error: %v\n", err)
				return nil
			}
			defer a.Close()

			if err := a.db.Ping(ctx); err != nil {
				fmt.Printf("Database Status: %s\n", failStyle.Render("Unreachable"))
				fmt.Printf("Error: %v\n", err)
				return nil
			}

			status, err := a.db.GetStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			fmt.Println(headingStyle.Render("=== Fieldguide Status ==="))
			fmt.Printf("Database: %s (%s)\n", okStyle.Render("Connected"), a.db.Dialect())
			if a.cfg.Database.IsPostgres() {
				fmt.Printf("  Host: %s\n  Database: %s\n  Schema: %s\n",
					a.cfg.Database.Host, a.cfg.Database.Database, a.cfg.Database.Schema)
			} else {
				fmt.Printf("  Path: %s\n", a.cfg.Database.Path)
			}
			fmt.Printf("Content: %s\n\n", a.cfg.ContentDir)

			fmt.Printf("Collections: %d (%d downloaded, %d favorites)\n",
				status.Collections, status.Downloaded, status.Favorites)
			fmt.Printf("  Sections: %d\n  Blocks: %d\n", status.Sections, status.Blocks)
			fmt.Printf("Checklists: %d (%d/%d items checked)\n",
				status.Checklists, status.CheckedItems, status.ChecklistItems)
			if status.LastImportTime != nil {
				fmt.Printf("Last Import: %s\n", status.LastImportTime.Local().Format(time.RFC3339))
			}

			stale, err := importer.NewSweeper(a.db, a.src, 1).Stale(ctx)
			if err != nil {
				return fmt.Errorf("failed to check content: %w", err)
			}
			if len(stale) > 0 {
				fmt.Printf("%s %s\n", warnStyle.Render("Changed since last import:"), strings.Join(stale, ", "))
				fmt.Println(mutedStyle.Render("  Run 'fieldguide import' to pick them up."))
			}

			runs, err := a.db.LastImportRuns(ctx)
			if err != nil {
				return fmt.Errorf("failed to get import history: %w", err)
			}
			if len(runs) == 0 {
				return nil
			}

			fmt.Println()
			fmt.Println(boldStyle.Render("Last import per document"))
			for _, r := range runs {
				outcome := okStyle.Render(r.Outcome)
				switch r.Outcome {
				case db.OutcomeFailed:
					outcome = failStyle.Render(r.Outcome)
				case db.OutcomeSkipped:
					outcome = warnStyle.Render(r.Outcome)
				}
				fmt.Printf("  %-9s %-24s %-8s %s\n", r.Kind, r.Target, outcome,
					mutedStyle.Render(r.FinishedAt.Local().Format(time.DateTime)))
				if r.Error != nil {
					fmt.Printf("    %s\n", mutedStyle.Render(*r.Error))
				}
			}
			return nil
		},
	}
}

func manifestCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write manifest.json for the content directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			src := source.New(cfg)

			m, err := src.BuildManifest(baseURL, time.Now())
			if err != nil {
				return err
			}
			out, err := src.WriteManifest(m)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d collection(s) to %s\n", len(m.Radios), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "https://example.com/fieldguide", "base URL the content directory is served from")
	return cmd
}
