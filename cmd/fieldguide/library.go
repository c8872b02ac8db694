package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vonshlovens/fieldguide/internal/search"
)

func searchCmd() *cobra.Command {
	var scope search.Scope

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search section titles and text of downloaded manuals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.lib.Search(ctx, args[0], scope)
			if err != nil {
				return err
			}

			switch res.State {
			case search.StatePrompt:
				fmt.Printf("Type at least %d characters to search.\n", search.MinQueryLength)
				return nil
			case search.StateEmpty:
				fmt.Printf("No results for %q.\n", res.Query)
				return nil
			}

			for i, g := range res.Groups() {
				if i > 0 {
					fmt.Println()
				}
				fmt.Println(headingStyle.Render(g.Title))
				for _, m := range g.Matches {
					fmt.Printf("  %s %s\n", m.Title, mutedStyle.Render(m.ID))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope.CollectionID, "collection", "", "search only this collection")
	cmd.Flags().BoolVar(&scope.FavoritesOnly, "favorites", false, "search only favorite collections")
	cmd.MarkFlagsMutuallyExclusive("collection", "favorites")
	return cmd
}

func favoriteCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "favorite <collection-id>",
		Short: "Toggle a collection's favorite mark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.lib.FindCollection(ctx, args[0])
			if err != nil {
				return err
			}

			fav := false
			if off {
				err = a.lib.SetFavorite(ctx, c.ID, false)
			} else {
				fav, err = a.lib.ToggleFavorite(ctx, c.ID)
			}
			if err != nil {
				return err
			}

			if fav {
				fmt.Printf("%s %s is a favorite\n", okStyle.Render("★"), c.DisplayName())
			} else {
				fmt.Printf("%s %s is no longer a favorite\n", mutedStyle.Render("☆"), c.DisplayName())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "remove the mark instead of toggling")
	return cmd
}

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <collection-id>",
		Short: "Write a stored manual back out as a content document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := a.lib.ExportManual(ctx, args[0])
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(os.Stderr, "Exported %s to %s\n", args[0], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
