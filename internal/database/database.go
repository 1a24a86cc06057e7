// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/url"
	"strings"
	"sync"

	"englishapp/internal/config"
	"englishapp/internal/observability"
	contextutils "englishapp/internal/utils"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // registers the postgres database/sql driver
	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Manager opens the instrumented connection pool and keeps the schema current
type Manager struct {
	logger *observability.Logger
	cfg    config.DatabaseConfig

	mu          sync.Mutex
	schemaReady bool
	migrateUp   func(ctx context.Context) error
}

var (
	otelDriverName string
	otelDriverOnce sync.Once
	otelDriverErr  error
)

// NewManager creates a new database manager for the configured database
func NewManager(cfg config.DatabaseConfig, logger *observability.Logger) *Manager {
	dm := &Manager{logger: logger, cfg: cfg}
	dm.migrateUp = dm.Migrate
	return dm
}

// Open returns a pooled, traced connection and verifies it with a ping
func (dm *Manager) Open(ctx context.Context) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "open",
		attribute.String("db.name", extractDatabaseName(dm.cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", dm.cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", dm.cfg.MaxIdleConns),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(dm.cfg.URL) == "" {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "DATABASE_URL is not set")
	}

	otelDriverOnce.Do(func() {
		otelDriverName, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(dm.cfg.URL)),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverName, dm.cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(dm.cfg.MaxOpenConns)
	db.SetMaxIdleConns(dm.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(dm.cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, config.DatabasePingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to ping database: %w", err)
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"database":          contextutils.RedactDatabaseURL(dm.cfg.URL),
		"max_open_conns":    dm.cfg.MaxOpenConns,
		"max_idle_conns":    dm.cfg.MaxIdleConns,
		"conn_max_lifetime": dm.cfg.ConnMaxLifetime.String(),
	})

	return db, nil
}

func (dm *Manager) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dm.cfg.URL)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to initialize golang-migrate: %w", err)
	}
	return m, nil
}

// Migrate applies every pending embedded migration
func (dm *Manager) Migrate(ctx context.Context) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "migrate",
		attribute.String("migration.type", "golang_migrate"),
	)
	defer observability.FinishSpan(span, &err)

	m, err := dm.newMigrate()
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			dm.logger.Error(ctx, "Error closing migration", errors.Join(srcErr, dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Debug(ctx, "No new migrations to apply")
		return nil
	}
	if err != nil {
		return contextutils.WrapError(err, "golang-migrate up failed")
	}

	dm.logger.Info(ctx, "Database migrations applied")
	return nil
}

// MigrationStatus reports the applied schema version
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	Applied bool `json:"applied"`
}

// Status returns the current migration version without changing anything
func (dm *Manager) Status(ctx context.Context) (result0 *MigrationStatus, err error) {
	_, span := observability.TraceDatabaseFunction(ctx, "status")
	defer observability.FinishSpan(span, &err)

	m, err := dm.newMigrate()
	if err != nil {
		return nil, err
	}
	defer func() { _, _ = m.Close() }()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return &MigrationStatus{}, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read migration version")
	}
	return &MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// EnsureSchema runs migrations once per process; failures are retried on the next call
func (dm *Manager) EnsureSchema(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.schemaReady {
		return nil
	}
	if err := dm.migrateUp(ctx); err != nil {
		return err
	}
	dm.schemaReady = true
	return nil
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Scheme != "" && u.Path != "" {
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
			return dbName
		}
	}

	// key=value DSN form
	for _, part := range strings.Fields(databaseURL) {
		if name, ok := strings.CutPrefix(part, "dbname="); ok {
			return name
		}
	}

	return "english"
}
