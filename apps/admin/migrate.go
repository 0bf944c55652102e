package main

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/unistock/stockroom/storage/database"
)

var migrateFunc = database.MigrateCommand // mockable

var errNoDatabase = errors.New("no database connection")

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a migration command on the embedded migrations",
		Long: `Run a migration command on the embedded migrations.

Commands:
  up                   Migrate the DB to the most recent version available
  up-by-one            Migrate the DB up by 1
  up-to VERSION        Migrate the DB to a specific VERSION
  down                 Roll back the version by 1
  down-to VERSION      Roll back to a specific VERSION
  redo                 Re-run the latest migration
  reset                Roll back all migrations
  status               Dump the migration status for the current DB
  version              Print the current version of the database`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *sql.DB
			if cli.db != nil {
				db = cli.db.DB
			}
			if db == nil {
				return errNoDatabase
			}
			return migrateFunc(db, args[0], args[1:]...)
		},
	}
}
