package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vonshlovens/fieldguide/internal/document"
	"github.com/vonshlovens/fieldguide/internal/importer"
)

func checklistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklists",
		Short: "Manage field checklists",
	}

	cmd.AddCommand(
		checklistsImportCmd(),
		checklistsResetCmd(),
		checklistsShowCmd(),
		checklistsCheckCmd(),
		checklistsUncheckAllCmd(),
	)
	return cmd
}

func checklistsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Create checklists for template phases that have none yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.src.ReadTemplate()
			if err != nil {
				return err
			}

			res, err := importer.NewChecklistImporter(a.db).Import(ctx, importer.TemplateDocument{
				Name: a.src.TemplateFile(),
				Data: data,
			})
			if err != nil {
				return err
			}

			fmt.Printf("%d created, %d kept, %d items\n", len(res.Created), len(res.Existing), res.Items)
			for _, p := range res.Unknown {
				fmt.Printf("%s skipped unknown phase %q\n", warnStyle.Render("!"), p)
			}
			return nil
		},
	}
}

func checklistsResetCmd() *cobra.Command {
	var (
		phaseArgs []string
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Rebuild checklists from the template, clearing check marks",
		Long: `Deletes the selected checklists (all of them by default) and recreates them from the
current template. Every check mark of the reset checklists is lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			phases := make([]document.Phase, 0, len(phaseArgs))
			for _, s := range phaseArgs {
				p, ok := document.ParsePhase(s)
				if !ok {
					return fmt.Errorf("unknown phase %q", s)
				}
				phases = append(phases, p)
			}

			confirmed := yes
			if !confirmed {
				scope := "all checklists"
				if len(phases) > 0 {
					scope = fmt.Sprintf("%v", phases)
				}
				err := huh.NewConfirm().
					Title(fmt.Sprintf("Reset %s?", scope)).
					Description("Every check mark in them will be lost.").
					Affirmative("Reset").
					Negative("Cancel").
					Value(&confirmed).
					Run()
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Reset cancelled.")
					return nil
				}
				if err != nil {
					return err
				}
			}
			if !confirmed {
				fmt.Println("Reset cancelled.")
				return nil
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.src.ReadTemplate()
			if err != nil {
				return err
			}

			res, err := importer.NewChecklistImporter(a.db).Reset(ctx,
				importer.TemplateDocument{Name: a.src.TemplateFile(), Data: data},
				importer.ResetOptions{Confirmed: confirmed, Phases: phases})
			if err != nil {
				return err
			}

			fmt.Printf("%s %d deleted, %d created, %d items\n",
				okStyle.Render("✓"), res.Deleted, len(res.Created), res.Items)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&phaseArgs, "phase", nil, "phase to reset (repeatable, default all)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func checklistsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [phase]",
		Short: "Show checklists and their progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				checklists, err := a.lib.Checklists(ctx)
				if err != nil {
					return err
				}
				for _, c := range checklists {
					view, err := a.lib.ChecklistView(ctx, c.ID)
					if err != nil {
						return err
					}
					mark := mutedStyle.Render(view.Progress.String())
					if view.Progress.Complete() {
						mark = okStyle.Render(view.Progress.String())
					}
					fmt.Printf("%-24s %-12s %s\n", boldStyle.Render(c.Title), c.ID, mark)
				}
				return nil
			}

			c, err := a.lib.FindChecklistByPath(ctx, args[0])
			if err != nil {
				return err
			}
			view, err := a.lib.ChecklistView(ctx, c.ID)
			if err != nil {
				return err
			}

			fmt.Printf("%s  %s\n", headingStyle.Render(c.Title), mutedStyle.Render(view.Progress.String()))
			for _, cat := range view.Categories() {
				fmt.Println()
				fmt.Println(boldStyle.Render(cat.Name))
				for _, item := range cat.Items {
					fmt.Printf("  %s %s %s\n", checkbox(item.IsChecked), item.Text, mutedStyle.Render(item.ID))
				}
			}
			if view.Hidden > 0 {
				fmt.Printf("\n%s\n", mutedStyle.Render(fmt.Sprintf("%d item(s) hidden for radios not downloaded", view.Hidden)))
			}
			return nil
		},
	}
}

func checklistsCheckCmd() *cobra.Command {
	var uncheck bool

	cmd := &cobra.Command{
		Use:   "check <item-id>",
		Short: "Toggle an item's check mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if uncheck {
				if err := a.lib.SetChecked(ctx, args[0], false); err != nil {
					return err
				}
				fmt.Printf("%s %s\n", checkbox(false), args[0])
				return nil
			}

			checked, err := a.lib.ToggleChecked(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", checkbox(checked), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&uncheck, "off", false, "clear the check mark instead of toggling")
	return cmd
}

func checklistsUncheckAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uncheck-all <phase>",
		Short: "Clear every check mark of a checklist, keeping its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.lib.FindChecklistByPath(ctx, args[0])
			if err != nil {
				return err
			}
			n, err := a.lib.UncheckAll(ctx, c.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d check mark(s) in %s.\n", n, c.Title)
			return nil
		},
	}
}
