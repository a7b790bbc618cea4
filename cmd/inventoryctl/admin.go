package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/inventory/internal/admin"
	"github.com/JonMunkholm/inventory/internal/application"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/store"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the import template workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := core.BuildTemplate()
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", core.TemplateFileName, "Output file")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.EnsureSchema(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the item types and locations rows may reference",
	}

	addType := &cobra.Command{
		Use:   "add-type AREA NAME",
		Short: "Register an item type for an area",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *application.App) error {
				it, created, err := admin.NewCatalog(app.Store).AddItemType(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				report(cmd, created, "item type %s/%s (%s)", it.Category, it.Name, it.ID)
				return nil
			})
		},
	}

	addLocation := &cobra.Command{
		Use:   "add-location CODE [NAME]",
		Short: "Register an active location",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return withApp(cmd.Context(), func(app *application.App) error {
				loc, created, err := admin.NewCatalog(app.Store).AddLocation(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				report(cmd, created, "location %s %q (%s)", loc.Code, loc.Name, loc.ID)
				return nil
			})
		},
	}

	cmd.AddCommand(addType, addLocation)
	return cmd
}

func report(cmd *cobra.Command, created bool, format string, args ...any) {
	verb := "exists"
	if created {
		verb = "added"
	}
	fmt.Fprintf(cmd.OutOrStdout(), verb+": "+format+"\n", args...)
}
