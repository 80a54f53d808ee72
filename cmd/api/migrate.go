package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/storage/sqlstore"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the chat log schema",
	Long:  `Applies or inspects the embedded SQL migrations. Only the postgres and sqlite drivers use a schema.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSQLStore(cmd, func(s *sqlstore.Store, dialect sqlstore.Dialect) error {
			if err := sqlstore.Migrate(cmd.Context(), s.DB(), dialect); err != nil {
				return err
			}
			log.FromCtx(cmd.Context()).Info().Str("dialect", string(dialect)).Msg("migrations applied")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of every migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSQLStore(cmd, func(s *sqlstore.Store, dialect sqlstore.Dialect) error {
			return sqlstore.MigrationStatus(cmd.Context(), s.DB(), dialect)
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withSQLStore opens the configured SQL database without migrating it and
// runs fn against it.
func withSQLStore(cmd *cobra.Command, fn func(*sqlstore.Store, sqlstore.Dialect) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, flushLog := setupLogger(cmd.Context(), cfg)
	defer flushLog()
	cmd.SetContext(ctx)

	var dialect sqlstore.Dialect
	dsn := cfg.Store.DSN
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		dialect = sqlstore.Postgres
	case config.DriverSQLite:
		dialect = sqlstore.SQLite
		dsn = cfg.Store.SQLitePath
	default:
		return fmt.Errorf("store driver %q has no SQL schema", cfg.Store.Driver)
	}

	store, err := sqlstore.Open(ctx, dialect, dsn, false)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store, dialect)
}
