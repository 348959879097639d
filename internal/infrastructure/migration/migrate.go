package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies the SQL migrations of one source to a Postgres database.
// The source is the binary's embedded set or os.DirFS of a directory.
type Migrator struct {
	m         *migrate.Migrate
	available []pair
	logger    *zap.Logger
}

// Status describes the schema version against the source.
type Status struct {
	Version uint
	Dirty   bool
	Pending []string
}

// New opens a migrator. Closing it also closes db.
func New(db *sql.DB, source fs.FS, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	available, err := scan(source)
	if err != nil {
		return nil, fmt.Errorf("invalid migration source: %w", err)
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m, available: available, logger: logger}, nil
}

// apply runs one migrate operation. ErrNoChange is success.
func (mg *Migrator) apply(action string, fn func() error) error {
	mg.logger.Info("Applying migrations", zap.String("action", action))
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("Schema already current", zap.String("action", action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", action, err)
	}
	st, err := mg.Status()
	if err != nil {
		return err
	}
	mg.logger.Info("Migrations applied",
		zap.String("action", action),
		zap.Uint("version", st.Version),
		zap.Int("pending", len(st.Pending)),
	)
	return nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error { return mg.apply("up", mg.m.Up) }

// Down rolls every migration back, dropping the engine's tables.
func (mg *Migrator) Down() error { return mg.apply("down", mg.m.Down) }

// Steps applies n migrations, or rolls back -n when n is negative.
func (mg *Migrator) Steps(n int) error {
	return mg.apply(fmt.Sprintf("step %d", n), func() error { return mg.m.Steps(n) })
}

// GoTo migrates up or down to version.
func (mg *Migrator) GoTo(version uint) error {
	return mg.apply(fmt.Sprintf("goto %d", version), func() error { return mg.m.Migrate(version) })
}

// Status reports the applied version and the migrations above it. An empty
// database has version 0.
func (mg *Migrator) Status() (Status, error) {
	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	st := Status{Version: version, Dirty: dirty, Pending: []string{}}
	for _, p := range mg.available {
		if p.version > version {
			st.Pending = append(st.Pending, p.base)
		}
	}
	return st, nil
}

// Force records version as applied and clean without running anything. It
// is the way out of a dirty state after a failed migration was fixed by hand.
func (mg *Migrator) Force(version int) error {
	mg.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every table in the schema, sync history and ID mappings included.
func (mg *Migrator) Drop() error {
	mg.logger.Warn("Dropping all tables")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	return nil
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}
