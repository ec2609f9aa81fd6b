// Package annotations stores each reader's highlights and notes for a book.
//
// EPUB annotations are merged per CFI range: saving a highlight or note for a
// range that already has one overwrites it in place, anything else is
// appended. PDF annotations are replaced as a whole batch on every save,
// since the reader recomputes the full set of rectangles on each edit.
//
// Every write is a single transaction of INSERT ... ON CONFLICT statements,
// so concurrent saves for the same user and book can't lose each other's
// changes.
package annotations

import (
	"net/http"

	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

func errNoAnnotations() error {
	return &errcodes.Error{
		HTTPCode: http.StatusNotFound,
		Message:  "No annotations found.",
		Code:     "not_found",
	}
}

func errEmptyAnnotation(msg string) error {
	return errcodes.BadRequest(msg, "empty_annotation")
}
