package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// user_id and book_id are opaque references with no foreign keys:
		// annotations outlive the catalog rows they point at.
		_, err := db.Exec(`
			CREATE TABLE epub_annotations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id TEXT NOT NULL,
				book_id TEXT NOT NULL,
				UNIQUE (user_id, book_id)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE epub_highlights (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				annotation_id INTEGER NOT NULL REFERENCES epub_annotations (id) ON DELETE CASCADE,
				cfi_range TEXT NOT NULL,
				color TEXT NOT NULL DEFAULT '',
				selected_text TEXT NOT NULL DEFAULT '',
				UNIQUE (annotation_id, cfi_range)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE epub_notes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				annotation_id INTEGER NOT NULL REFERENCES epub_annotations (id) ON DELETE CASCADE,
				cfi_range TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				UNIQUE (annotation_id, cfi_range)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE pdf_annotations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id TEXT NOT NULL,
				book_id TEXT NOT NULL,
				annotations TEXT NOT NULL DEFAULT '[]',
				UNIQUE (user_id, book_id)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"pdf_annotations", "epub_notes", "epub_highlights", "epub_annotations"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
