// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"fmt"

	"englishapp/internal/database"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/spf13/cobra"
)

// Migrator applies and reports schema migrations
type Migrator interface {
	Migrate(ctx context.Context) error
	Status(ctx context.Context) (*database.MigrationStatus, error)
}

// DatabaseCommands returns the database management commands
func DatabaseCommands(migrator Migrator, logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the English learning backend.

Available commands:
  migrate   - Apply pending schema migrations
  status    - Show the applied schema version`,
	}

	dbCmd.AddCommand(migrateCmd(migrator, logger))
	dbCmd.AddCommand(statusCmd(migrator, logger, db, databaseURL))

	return dbCmd
}

func migrateCmd(migrator Migrator, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := migrator.Migrate(ctx); err != nil {
				logger.Error(ctx, "Migration failed", err)
				return contextutils.WrapError(err, "migration failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func statusCmd(migrator Migrator, logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger.Debug(ctx, "Admin command diagnostics", map[string]interface{}{"database_url": contextutils.RedactDatabaseURL(databaseURL)})

			status, err := migrator.Status(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to read migration status", err)
				return contextutils.WrapError(err, "failed to read migration status")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", getDatabaseInfo(ctx, db))
			if !status.Applied {
				fmt.Fprintln(out, "Schema:   no migrations applied")
				return nil
			}
			fmt.Fprintf(out, "Schema:   version %d", status.Version)
			if status.Dirty {
				fmt.Fprint(out, " (dirty)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
