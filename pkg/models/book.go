package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Book file kinds.
const (
	FileKindEPUB = "epub"
	FileKindPDF  = "pdf"
)

// MIME types accepted for book files.
const (
	MimeTypeEPUB = "application/epub+zip"
	MimeTypePDF  = "application/pdf"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID            string      `bun:",pk" json:"id"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Title         string      `json:"title"`
	Author        string      `json:"author"`
	Description   string      `json:"description"`
	Language      string      `json:"language"`
	PublishedYear *int        `json:"publishedYear"`
	Files         []*BookFile `bun:"rel:has-many,join:id=book_id" json:"files"`
}

// File returns the book's file of the given kind, or nil.
func (b *Book) File(kind string) *BookFile {
	for _, f := range b.Files {
		if f.Kind == kind {
			return f
		}
	}
	return nil
}

type BookFile struct {
	bun.BaseModel `bun:"table:book_files,alias:bf"`

	ID        string    `bun:",pk" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	BookID    string    `bun:",nullzero" json:"bookId"`
	Kind      string    `bun:",nullzero" json:"kind"`
	BlobID    string    `bun:",nullzero" json:"-"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	PageCount *int      `json:"pageCount"`
}

// FileKindForMimeType maps a sniffed MIME type to a file kind. The second
// return value is false for unsupported types.
func FileKindForMimeType(mimeType string) (string, bool) {
	switch mimeType {
	case MimeTypeEPUB:
		return FileKindEPUB, true
	case MimeTypePDF:
		return FileKindPDF, true
	}
	return "", false
}
