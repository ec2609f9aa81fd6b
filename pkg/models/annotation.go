package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EpubAnnotation is the annotation record for one user reading one
// reflowable book. Highlights and notes are keyed by CFI range and kept in
// the order they were first created.
type EpubAnnotation struct {
	bun.BaseModel `bun:"table:epub_annotations,alias:ea"`

	ID         int              `bun:",pk,autoincrement" json:"-"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	UserID     string           `bun:",nullzero" json:"userId"`
	BookID     string           `bun:",nullzero" json:"bookId"`
	Highlights []*EpubHighlight `bun:"rel:has-many,join:id=annotation_id" json:"highlights"`
	Notes      []*EpubNote      `bun:"rel:has-many,join:id=annotation_id" json:"notes"`
}

type EpubHighlight struct {
	bun.BaseModel `bun:"table:epub_highlights,alias:eh"`

	ID           int       `bun:",pk,autoincrement" json:"-"`
	UpdatedAt    time.Time `json:"-"`
	AnnotationID int       `bun:",nullzero" json:"-"`
	CFIRange     string    `bun:"cfi_range,nullzero" json:"cfiRange"`
	Color        string    `json:"color"`
	SelectedText string    `json:"selectedText"`
}

type EpubNote struct {
	bun.BaseModel `bun:"table:epub_notes,alias:en"`

	ID           int       `bun:",pk,autoincrement" json:"-"`
	UpdatedAt    time.Time `json:"-"`
	AnnotationID int       `bun:",nullzero" json:"-"`
	CFIRange     string    `bun:"cfi_range,nullzero" json:"cfiRange"`
	Content      string    `json:"content"`
}

// PdfAnnotation is the annotation record for one user reading one
// fixed-layout book. The annotation sets are stored as a JSON column and are
// replaced wholesale on every save.
type PdfAnnotation struct {
	bun.BaseModel `bun:"table:pdf_annotations,alias:pa"`

	ID          int                `bun:",pk,autoincrement" json:"-"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	UserID      string             `bun:",nullzero" json:"userId"`
	BookID      string             `bun:",nullzero" json:"bookId"`
	Annotations []PdfAnnotationSet `bun:",notnull" json:"annotations"`
}

type PdfAnnotationSet struct {
	Highlights []PdfHighlight `json:"highlights"`
	Notes      []PdfNote      `json:"notes"`
}

// PdfHighlight is anchored to a page by a rectangle expressed in percentages
// of the rendered page's width and height.
type PdfHighlight struct {
	Rect       PdfRect `json:"rect"`
	Color      string  `json:"color"`
	Text       string  `json:"text"`
	PageNumber int     `json:"pageNumber"`
}

type PdfRect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type PdfNote struct {
	Text       string `json:"text"`
	Note       string `json:"note"`
	PageNumber int    `json:"pageNumber"`
}
