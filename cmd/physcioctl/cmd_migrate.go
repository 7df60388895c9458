package main

import (
	"fmt"

	"github.com/claude/physcio/internal/config"
	"github.com/claude/physcio/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply pending schema migrations for the hosted (PostgreSQL) backend.

The local SQLite backend creates its schema on open, so this only
verifies the database file can be opened.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Storage.Backend == storage.BackendHosted {
		if err := storage.RunMigrations(cfg.Database.DSN()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	}

	store, err := storage.Open(cmd.Context(), cfg.Storage.Backend, "", cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "local schema ready at %s\n", cfg.Storage.SQLitePath)
	return nil
}
