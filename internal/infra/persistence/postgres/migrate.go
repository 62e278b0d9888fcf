package postgres

import (
	"context"
	"database/sql"

	"archer/internal/errors"
	"archer/internal/infra/persistence/postgres/migrations"

	"github.com/pressly/goose/v3"
)

// Migrate applies every pending migration.
func Migrate(ctx context.Context, sqlDB *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	return nil
}
