package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sinergia/backend/internal/adapter/sqlite"
	"github.com/sinergia/backend/internal/config"
)

var dbPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded SQLite schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := dbPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.SQLitePath
	}

	db, err := sqlite.NewDB(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	if err := sqlite.RunMigrations(db.Writer); err != nil {
		return err
	}
	version, dirty, err := sqlite.MigrationVersion(db.Writer)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d (dirty=%t)\n", path, version, dirty)
	return nil
}
