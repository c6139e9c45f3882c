package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"maitred/internal/config"
)

// SchemaMigrator applies pending migrations from a file source against the
// configured database. The migration-version table owned by golang-migrate
// is the persisted bootstrap state: a second run with nothing pending is a
// no-op success.
type SchemaMigrator struct {
	cfg config.DatabaseConfig
}

func NewSchemaMigrator(cfg config.DatabaseConfig) *SchemaMigrator {
	return &SchemaMigrator{cfg: cfg}
}

func (m *SchemaMigrator) Up(ctx context.Context) error {
	if m.cfg.DSN == "" {
		return fmt.Errorf("database.dsn is not configured")
	}

	if err := m.waitForDatabase(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}

	mig, err := migrate.New("file://"+m.cfg.MigrationsDir, m.cfg.DSN)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := mig.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Closing migrator")
		}
	}()

	err = mig.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("No pending migrations")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, verErr := mig.Version()
	if verErr == nil {
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Migrations applied")
	} else {
		log.Info().Msg("Migrations applied")
	}
	return nil
}

// waitForDatabase pings the database with exponential backoff. The start
// order dependency normally guarantees the database is up first; this covers
// deployments where that mechanism is unavailable.
func (m *SchemaMigrator) waitForDatabase(ctx context.Context) error {
	driver, dsn, err := sqlDriverFor(m.cfg.DSN)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = m.cfg.WaitTimeout

	attempt := 0
	ping := func() error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("Database not ready")
			return err
		}
		return nil
	}

	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	log.Info().Int("attempts", attempt).Msg("Database reachable")
	return nil
}

// sqlDriverFor maps a migration DSN onto a database/sql driver for the
// reachability ping.
func sqlDriverFor(dsn string) (driver, connStr string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), nil
	default:
		return "", "", fmt.Errorf("unsupported database DSN scheme in %q", dsn)
	}
}
