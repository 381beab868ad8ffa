// Package migrate applies embedded SQL migrations on startup.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/migrations"
)

// Up runs all pending migrations from the embedded filesystem and logs the
// resulting schema version.
func Up(ctx context.Context, dsn string, log *zap.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return errs.Wrap(err, errs.KindDatabaseConnection)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return errs.Wrap(err, errs.KindMigration).WithDetail("operation", "migrate.dialect")
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return errs.Wrap(err, errs.KindDatabaseQuery).WithDetail("operation", "migrate.up")
	}
	ver, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return errs.Wrap(err, errs.KindDatabaseQuery).WithDetail("operation", "migrate.version")
	}
	log.Info("migrations applied", zap.Int64("version", ver))
	return nil
}
