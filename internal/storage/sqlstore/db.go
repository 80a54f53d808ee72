package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// Dialect selects the SQL flavour and the database/sql driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

func (d Dialect) migrationsDir() string {
	if d == Postgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

// OpenDB opens and pings the database. SQLite files get their parent
// directory created; SQLite is limited to one connection so an in-memory
// database is shared by every query.
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect == SQLite && !strings.Contains(dsn, ":memory:") {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration for dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log.NewGooseLoggerFromCtx(ctx))

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dialect.migrationsDir()); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of every migration.
func MigrationStatus(ctx context.Context, db *sql.DB, dialect Dialect) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log.NewGooseLoggerFromCtx(ctx))

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.StatusContext(ctx, db, dialect.migrationsDir())
}

// Open opens the database, optionally migrates it and returns a Store.
func Open(ctx context.Context, dialect Dialect, dsn string, migrate bool) (*Store, error) {
	db, err := OpenDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := Migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return New(db, dialect), nil
}
