package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE reader_settings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id TEXT NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
				epub_font_size INTEGER NOT NULL DEFAULT 100,
				epub_theme TEXT NOT NULL DEFAULT 'light',
				pdf_zoom INTEGER NOT NULL DEFAULT 100
			)
		`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS reader_settings")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
