package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/giygas/openfda-api/store"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan)
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, version, err := opts.connect(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer db.Close()

			green.Fprintf(cmd.OutOrStdout(), "✅ Schema at version %d (%s)\n", version, opts.driver)
			return nil
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load a fixtures file, inserting only rows that are missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := store.LoadFixtures(args[0])
			if err != nil {
				return err
			}

			db, _, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := store.NewSeeder(db).Seed(cmd.Context(), fixtures)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result) == 0 {
				yellow.Fprintln(out, "Nothing to insert, every row already exists")
				return nil
			}
			green.Fprintln(out, "✅ Inserted rows:")
			for _, table := range slices.Sorted(maps.Keys(result)) {
				printCount(out, table, int64(result[table]))
			}
			return nil
		},
	}
}

func newWipeCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every row of every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("wipe deletes all data, pass --yes to confirm")
			}

			db, _, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			deleted, err := store.Wipe(cmd.Context(), db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			yellow.Fprintln(out, "🗑  Deleted rows:")
			for _, table := range slices.Sorted(maps.Keys(deleted)) {
				printCount(out, table, deleted[table])
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the wipe")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the row count of every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			exec, err := store.NewExecutor(db, store.DefaultSchema())
			if err != nil {
				return err
			}
			counts, err := exec.Counts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var total int64
			for _, table := range slices.Sorted(maps.Keys(counts)) {
				printCount(out, table, counts[table])
				total += counts[table]
			}
			green.Fprintf(out, "Total: %d rows\n", total)
			return nil
		},
	}
}

func printCount(out io.Writer, table string, n int64) {
	fmt.Fprintf(out, "   - %s ", table)
	cyan.Fprintf(out, "%d\n", n)
}
