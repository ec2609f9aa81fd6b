package annotations

import "github.com/marginalia-app/marginalia/pkg/models"

// SaveEpubPayload is one highlight and/or note at a CFI range. userId and
// bookId are optional; they default to the signed-in user and the book in
// the path.
type SaveEpubPayload struct {
	UserID         string  `json:"userId" mod:"trim"`
	BookID         string  `json:"bookId" mod:"trim"`
	CFIRange       string  `json:"cfiRange" mod:"trim" validate:"required,max=4096"`
	Content        *string `json:"content" validate:"omitempty,max=20000"`
	HighlightColor *string `json:"highlightColor" mod:"trim" validate:"omitempty,max=64,rgbcolor"`
	SelectedText   *string `json:"selectedText" validate:"omitempty,max=20000"`
}

// SavePdfPayload is the full set of a reader's PDF annotations for a book.
// Highlights are keyed by page number.
type SavePdfPayload struct {
	UserID          string                           `json:"userId" mod:"trim"`
	BookID          string                           `json:"bookId" mod:"trim"`
	Highlights      map[string][]models.PdfHighlight `json:"highlights"`
	PostAnnotations []models.PdfNote                 `json:"postAnnotations"`
}

// SaveEpubResponse is returned after an EPUB annotation is saved.
type SaveEpubResponse struct {
	Message    string                 `json:"message"`
	Annotation *models.EpubAnnotation `json:"annotation"`
}
