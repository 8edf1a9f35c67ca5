package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed *.sql
var fs embed.FS

// Run applies all up migrations embedded in this package. It is safe to run
// on every start.
func Run(dsn string, log *zap.Logger) error {
	if dsn == "" {
		return errors.New("migrations: DATABASE_URL is not set")
	}

	// iofs driver from embedded files
	d, err := iofs.New(fs, ".")
	if err != nil {
		return fmt.Errorf("iofs: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dsn)
	if err != nil {
		return fmt.Errorf("migrate new: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	if v, dirty, err := m.Version(); err == nil {
		log.Info("schema migrated", zap.Uint("version", v), zap.Bool("dirty", dirty))
	}
	return nil
}
