package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/giygas/openfda-api/config"
	"github.com/giygas/openfda-api/migrations"
	"github.com/giygas/openfda-api/store"
)

type options struct {
	driver string
	dsn    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "openfda-admin",
		Short: "Administer the openFDA drug database",
		Long: `openfda-admin manages the database behind the drug query API.

Examples:

  openfda-admin migrate
  openfda-admin seed fixtures.yaml
  openfda-admin stats
  openfda-admin wipe --yes
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("driver") {
				if v := os.Getenv("DATABASE_DRIVER"); v != "" {
					opts.driver = v
				}
			}
			if !cmd.Flags().Changed("dsn") {
				opts.dsn = os.Getenv("DATABASE_URL")
				if opts.dsn == "" {
					opts.dsn = config.DefaultDatabaseURL(opts.driver)
				}
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.driver, "driver", store.DriverPostgres, "database driver (postgres or sqlite)")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "database connection string (default from DATABASE_URL)")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newWipeCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	return root
}

// connect opens the database and brings its schema up to date
func (o *options) connect(ctx context.Context) (*sqlx.DB, uint, error) {
	db, err := store.Open(o.driver, o.dsn)
	if err != nil {
		return nil, 0, err
	}
	version, err := migrations.Migrate(ctx, db.DB, o.driver)
	if err != nil {
		db.Close()
		return nil, 0, err
	}
	return db, version, nil
}
