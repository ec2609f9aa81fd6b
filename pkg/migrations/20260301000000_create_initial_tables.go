package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE users (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'reader',
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE signup_otps (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				code_hash TEXT NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_signup_otps_expires_at ON signup_otps (expires_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE blobs (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				size INTEGER NOT NULL,
				mime_type TEXT NOT NULL,
				chunk_size INTEGER NOT NULL,
				chunk_count INTEGER NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE blob_chunks (
				blob_id TEXT NOT NULL REFERENCES blobs (id) ON DELETE CASCADE,
				n INTEGER NOT NULL,
				data BLOB NOT NULL,
				PRIMARY KEY (blob_id, n)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE books (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				published_year INTEGER
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_title ON books (title COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE book_files (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id TEXT NOT NULL REFERENCES books (id) ON DELETE CASCADE,
				kind TEXT NOT NULL,
				blob_id TEXT NOT NULL REFERENCES blobs (id),
				filename TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				page_count INTEGER,
				UNIQUE (book_id, kind)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_book_files_blob_id ON book_files (blob_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE notifications (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				message TEXT NOT NULL DEFAULT '',
				book_id TEXT,
				read_at TIMESTAMPTZ
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_notifications_user_id_created_at ON notifications (user_id, created_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"notifications", "book_files", "books", "blob_chunks", "blobs", "signup_otps", "users"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
