package annotations

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// SaveEpubOptions describes one highlight and/or note at a CFI range. Nil
// fields are left as they are: a highlight is only written when Color or
// SelectedText is set, and a note only when Content is set.
type SaveEpubOptions struct {
	UserID         string
	BookID         string
	CFIRange       string
	Content        *string
	HighlightColor *string
	SelectedText   *string
}

func (o SaveEpubOptions) hasHighlight() bool {
	return o.HighlightColor != nil || o.SelectedText != nil
}

func (o SaveEpubOptions) hasNote() bool {
	return o.Content != nil
}

// SaveEpubAnnotations merges the highlight and note into the user's record
// for the book, creating the record on first write, and returns the whole
// record.
func (svc *Service) SaveEpubAnnotations(ctx context.Context, opts SaveEpubOptions) (*models.EpubAnnotation, error) {
	opts.CFIRange = strings.TrimSpace(opts.CFIRange)
	if opts.CFIRange == "" {
		return nil, errEmptyAnnotation("A cfiRange is required.")
	}
	if !opts.hasHighlight() && !opts.hasNote() {
		return nil, errEmptyAnnotation("Provide a highlight color, selected text, or note content.")
	}

	now := time.Now()
	record := &models.EpubAnnotation{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    opts.UserID,
		BookID:    opts.BookID,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (user_id, book_id) DO UPDATE").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if opts.hasHighlight() {
			highlight := &models.EpubHighlight{
				UpdatedAt:    now,
				AnnotationID: record.ID,
				CFIRange:     opts.CFIRange,
			}
			q := tx.NewInsert().
				Model(highlight).
				On("CONFLICT (annotation_id, cfi_range) DO UPDATE").
				Set("updated_at = EXCLUDED.updated_at")
			if opts.HighlightColor != nil {
				highlight.Color = *opts.HighlightColor
				q = q.Set("color = EXCLUDED.color")
			}
			if opts.SelectedText != nil {
				highlight.SelectedText = *opts.SelectedText
				q = q.Set("selected_text = EXCLUDED.selected_text")
			}
			if _, err := q.Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		}

		if opts.hasNote() {
			note := &models.EpubNote{
				UpdatedAt:    now,
				AnnotationID: record.ID,
				CFIRange:     opts.CFIRange,
				Content:      *opts.Content,
			}
			_, err := tx.NewInsert().
				Model(note).
				On("CONFLICT (annotation_id, cfi_range) DO UPDATE").
				Set("updated_at = EXCLUDED.updated_at").
				Set("content = EXCLUDED.content").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		record, err = loadEpubAnnotation(ctx, tx, opts.UserID, opts.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("epub annotation saved", logger.Data{
		"user_id":   opts.UserID,
		"book_id":   opts.BookID,
		"highlight": opts.hasHighlight(),
		"note":      opts.hasNote(),
	})

	return record, nil
}

// GetEpubAnnotations returns the user's record for the book.
func (svc *Service) GetEpubAnnotations(ctx context.Context, userID, bookID string) (*models.EpubAnnotation, error) {
	return loadEpubAnnotation(ctx, svc.db, userID, bookID)
}

func loadEpubAnnotation(ctx context.Context, db bun.IDB, userID, bookID string) (*models.EpubAnnotation, error) {
	record := &models.EpubAnnotation{}
	err := db.NewSelect().
		Model(record).
		Relation("Highlights", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("eh.id ASC")
		}).
		Relation("Notes", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("en.id ASC")
		}).
		Where("ea.user_id = ?", userID).
		Where("ea.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoAnnotations()
		}
		return nil, errors.WithStack(err)
	}

	if record.Highlights == nil {
		record.Highlights = []*models.EpubHighlight{}
	}
	if record.Notes == nil {
		record.Notes = []*models.EpubNote{}
	}
	return record, nil
}
