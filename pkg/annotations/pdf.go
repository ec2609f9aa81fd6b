package annotations

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"time"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// SavePdfOptions is a full batch of PDF annotations for one user and book.
// Highlights are grouped by page number the way the reader collects them.
type SavePdfOptions struct {
	UserID          string
	BookID          string
	Highlights      map[string][]models.PdfHighlight
	PostAnnotations []models.PdfNote
}

// SavePdfAnnotations replaces the highlights and notes of the user's record
// for the book with the given batch. The second return value reports whether
// the record was created by this call. An empty batch is rejected and never
// creates a record.
func (svc *Service) SavePdfAnnotations(ctx context.Context, opts SavePdfOptions) (*models.PdfAnnotation, bool, error) {
	set := models.PdfAnnotationSet{
		Highlights: flattenHighlights(opts.Highlights),
		Notes:      opts.PostAnnotations,
	}
	if set.Notes == nil {
		set.Notes = []models.PdfNote{}
	}
	if len(set.Highlights) == 0 && len(set.Notes) == 0 {
		return nil, false, errEmptyAnnotation("No highlights or notes to save.")
	}

	now := time.Now()
	record := &models.PdfAnnotation{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    opts.UserID,
		BookID:    opts.BookID,
	}
	created := false

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing, err := loadPdfAnnotation(ctx, tx, opts.UserID, opts.BookID)
		switch {
		case err == nil:
			// A record holds a single entry for its user and book; any
			// others are kept as they are.
			record.Annotations = existing.Annotations
			if len(record.Annotations) == 0 {
				record.Annotations = append(record.Annotations, set)
			} else {
				record.Annotations[0] = set
			}
		case errors.Is(err, sql.ErrNoRows):
			created = true
			record.Annotations = []models.PdfAnnotationSet{set}
		default:
			return err
		}

		_, err = tx.NewInsert().
			Model(record).
			On("CONFLICT (user_id, book_id) DO UPDATE").
			Set("updated_at = EXCLUDED.updated_at").
			Set("annotations = EXCLUDED.annotations").
			Returning("*").
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, false, err
	}

	logger.FromContext(ctx).Debug("pdf annotations saved", logger.Data{
		"user_id":    opts.UserID,
		"book_id":    opts.BookID,
		"highlights": len(set.Highlights),
		"notes":      len(set.Notes),
		"created":    created,
	})

	return record, created, nil
}

// GetPdfAnnotations returns the user's record for the book.
func (svc *Service) GetPdfAnnotations(ctx context.Context, userID, bookID string) (*models.PdfAnnotation, error) {
	record, err := loadPdfAnnotation(ctx, svc.db, userID, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoAnnotations()
	}
	return record, err
}

// loadPdfAnnotation returns sql.ErrNoRows unwrapped when there is no record.
func loadPdfAnnotation(ctx context.Context, db bun.IDB, userID, bookID string) (*models.PdfAnnotation, error) {
	record := &models.PdfAnnotation{}
	err := db.NewSelect().
		Model(record).
		Where("pa.user_id = ?", userID).
		Where("pa.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, errors.WithStack(err)
	}
	for i := range record.Annotations {
		normalizeSet(&record.Annotations[i])
	}
	return record, nil
}

// flattenHighlights orders the page groups by page number and stamps each
// highlight with its page when the reader left it out. Keys that aren't
// numbers sort after the numbered pages.
func flattenHighlights(byPage map[string][]models.PdfHighlight) []models.PdfHighlight {
	type page struct {
		key    string
		number int
		ok     bool
	}
	pages := make([]page, 0, len(byPage))
	for key := range byPage {
		n, err := strconv.Atoi(key)
		pages = append(pages, page{key: key, number: n, ok: err == nil})
	}
	sort.Slice(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.number != b.number {
			return a.number < b.number
		}
		return a.key < b.key
	})

	flat := []models.PdfHighlight{}
	for _, p := range pages {
		for _, h := range byPage[p.key] {
			if h.PageNumber == 0 && p.ok {
				h.PageNumber = p.number
			}
			flat = append(flat, h)
		}
	}
	return flat
}

func normalizeSet(set *models.PdfAnnotationSet) {
	if set.Highlights == nil {
		set.Highlights = []models.PdfHighlight{}
	}
	if set.Notes == nil {
		set.Notes = []models.PdfNote{}
	}
}
