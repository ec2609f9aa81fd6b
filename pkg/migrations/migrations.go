package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// NewMigrator returns a migrator over the registered migrations. A migration
// is only marked applied once it succeeds, so a failed one is retried on the
// next run.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, Migrations, migrate.WithMarkAppliedOnSuccess(true))
}

// BringUpToDate creates the migration tables if needed and applies every
// pending migration as one group.
func BringUpToDate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := NewMigrator(db)
	err := migrator.Init(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !group.IsZero() {
		logger.FromContext(ctx).Debug("applied migrations", logger.Data{"group_id": group.ID, "count": len(group.Migrations)})
	}
	return group, nil
}
