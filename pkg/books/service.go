package books

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia/pkg/blobstore"
	"github.com/marginalia-app/marginalia/pkg/epub"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/notifications"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type ListBooksOptions struct {
	Limit  *int
	Offset *int
	Query  *string
}

type UpdateBookOptions struct {
	Columns []string
}

// Upload is an uploaded book file. Multipart files satisfy it.
type Upload interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

type AddFileOptions struct {
	Filename string
	Size     int64
	Content  Upload
}

type Service struct {
	db                  *bun.DB
	blobs               *blobstore.Store
	notificationService *notifications.Service
}

func NewService(db *bun.DB, blobs *blobstore.Store, notificationService *notifications.Service) *Service {
	return &Service{db, blobs, notificationService}
}

// CreateBook inserts the book and lets every active user know about it.
func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	if book.ID == "" {
		book.ID = uuid.NewString()
	}

	_, err := svc.db.NewInsert().Model(book).Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	book.Files = []*models.BookFile{}

	message := book.Title
	if book.Author != "" {
		message = fmt.Sprintf("%s by %s", book.Title, book.Author)
	}
	_, err = svc.notificationService.Create(ctx, notifications.CreateOptions{
		Title:   "New book",
		Message: message + " was added to the library.",
		BookID:  &book.ID,
	})
	if err != nil {
		// The book exists either way; a missed announcement isn't worth
		// failing the request over.
		logger.FromContext(ctx).Err(err).Warn("failed to announce new book", logger.Data{"book_id": book.ID})
	}

	return nil
}

func (svc *Service) RetrieveBook(ctx context.Context, id string) (*models.Book, error) {
	book := &models.Book{}

	err := svc.db.
		NewSelect().
		Model(book).
		Relation("Files", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("bf.kind ASC")
		}).
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Files", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("bf.kind ASC")
		}).
		Order("b.title ASC", "b.id ASC")

	if opts.Query != nil && *opts.Query != "" {
		like := "%" + likeEscaper.Replace(*opts.Query) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where(`b.title LIKE ? ESCAPE '\'`, like).
				WhereOr(`b.author LIKE ? ESCAPE '\'`, like)
		})
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	book.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")
	_, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// DeleteBook removes the book and its files, then drops any blobs that are
// no longer referenced.
func (svc *Service) DeleteBook(ctx context.Context, id string) error {
	book, err := svc.RetrieveBook(ctx, id)
	if err != nil {
		return err
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.BookFile)(nil)).
			Where("book_id = ?", book.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = tx.NewDelete().
			Model((*models.Book)(nil)).
			Where("id = ?", book.ID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	blobIDs := make([]string, 0, len(book.Files))
	for _, f := range book.Files {
		blobIDs = append(blobIDs, f.BlobID)
	}
	svc.removeOrphanBlobs(ctx, blobIDs...)

	logger.FromContext(ctx).Info("book deleted", logger.Data{"book_id": book.ID})

	return nil
}

// AddFile stores an uploaded EPUB or PDF for the book. A book keeps one file
// per kind, so an upload of a kind it already has replaces that file. EPUB
// metadata fills in book fields that are still empty.
func (svc *Service) AddFile(ctx context.Context, bookID string, opts AddFileOptions) (*models.BookFile, error) {
	log := logger.FromContext(ctx)

	book, err := svc.RetrieveBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	mtype, err := mimetype.DetectReader(opts.Content)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	mimeType := mtype.String()
	kind, ok := models.FileKindForMimeType(mimeType)
	if !ok {
		log.Info("rejected upload", logger.Data{"book_id": bookID, "mimetype": mimeType})
		return nil, errcodes.UnsupportedMediaType()
	}

	file := &models.BookFile{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		BookID:    book.ID,
		Kind:      kind,
		Filename:  opts.Filename,
		MimeType:  mimeType,
		Size:      opts.Size,
	}

	bookColumns := []string{}
	switch kind {
	case models.FileKindEPUB:
		meta, err := epub.Parse(opts.Content, opts.Size)
		if err != nil {
			log.Err(err).Warn("failed to read epub metadata", logger.Data{"book_id": book.ID})
			break
		}
		bookColumns = fillFromMetadata(book, meta)
	case models.FileKindPDF:
		if _, err := opts.Content.Seek(0, io.SeekStart); err != nil {
			return nil, errors.WithStack(err)
		}
		pages, err := PDFPageCount(opts.Content)
		if err != nil {
			log.Err(err).Warn("failed to count pdf pages", logger.Data{"book_id": book.ID})
			break
		}
		file.PageCount = &pages
	}

	if _, err := opts.Content.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	blob, err := svc.blobs.Put(ctx, opts.Content, mimeType)
	if err != nil {
		return nil, err
	}
	file.BlobID = blob.ID
	file.Size = blob.Size

	var replaced *models.BookFile
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := &models.BookFile{}
		err := tx.NewSelect().
			Model(existing).
			Where("bf.book_id = ?", book.ID).
			Where("bf.kind = ?", kind).
			Scan(ctx)
		if err == nil {
			replaced = existing
			_, err = tx.NewDelete().Model(existing).WherePK().Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		if _, err := tx.NewInsert().Model(file).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}

		if len(bookColumns) > 0 {
			book.UpdatedAt = time.Now()
			_, err := tx.NewUpdate().
				Model(book).
				Column(append(bookColumns, "updated_at")...).
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
	if err != nil {
		// The blob may now be unreferenced.
		svc.removeOrphanBlobs(ctx, blob.ID)
		return nil, err
	}

	if replaced != nil {
		svc.removeOrphanBlobs(ctx, replaced.BlobID)
	}

	log.Info("book file stored", logger.Data{"book_id": book.ID, "file_id": file.ID, "kind": kind, "size": file.Size})

	return file, nil
}

// OpenFile returns the file record and a reader over its content.
func (svc *Service) OpenFile(ctx context.Context, bookID, fileID string) (*models.BookFile, io.ReadCloser, error) {
	file := &models.BookFile{}
	err := svc.db.NewSelect().
		Model(file).
		Where("bf.id = ?", fileID).
		Where("bf.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errcodes.NotFound("File")
		}
		return nil, nil, errors.WithStack(err)
	}

	rc, _, err := svc.blobs.Open(ctx, file.BlobID)
	if err != nil {
		return nil, nil, err
	}
	return file, rc, nil
}

// removeOrphanBlobs deletes the given blobs when no file references them.
// Failures are logged since the owning rows are already gone.
func (svc *Service) removeOrphanBlobs(ctx context.Context, blobIDs ...string) {
	log := logger.FromContext(ctx)
	for _, id := range blobIDs {
		referenced, err := svc.db.NewSelect().
			Model((*models.BookFile)(nil)).
			Where("bf.blob_id = ?", id).
			Exists(ctx)
		if err != nil {
			log.Err(err).Warn("failed to check blob references", logger.Data{"blob_id": id})
			continue
		}
		if referenced {
			continue
		}
		if err := svc.blobs.Delete(ctx, id); err != nil {
			log.Err(err).Warn("failed to delete orphaned blob", logger.Data{"blob_id": id})
		}
	}
}

// SweepOrphanBlobs deletes every blob that no file references and returns
// how many were removed. It picks up blobs left behind when the cleanup after
// a delete or replace failed.
func (svc *Service) SweepOrphanBlobs(ctx context.Context) (int, error) {
	var ids []string
	err := svc.db.NewSelect().
		Model((*models.Blob)(nil)).
		Column("bl.id").
		Where("NOT EXISTS (SELECT 1 FROM book_files AS bf WHERE bf.blob_id = bl.id)").
		Scan(ctx, &ids)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	for _, id := range ids {
		if err := svc.blobs.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// fillFromMetadata copies metadata into empty book fields and returns the
// columns it changed.
func fillFromMetadata(book *models.Book, meta *epub.Metadata) []string {
	columns := []string{}
	if book.Title == "" && meta.Title != "" {
		book.Title = meta.Title
		columns = append(columns, "title")
	}
	if book.Author == "" && len(meta.Authors) > 0 {
		book.Author = meta.Author()
		columns = append(columns, "author")
	}
	if book.Description == "" && meta.Description != "" {
		book.Description = meta.Description
		columns = append(columns, "description")
	}
	if book.Language == "" && meta.Language != "" {
		book.Language = meta.Language
		columns = append(columns, "language")
	}
	if book.PublishedYear == nil && meta.PublishedYear != nil {
		book.PublishedYear = meta.PublishedYear
		columns = append(columns, "published_year")
	}
	return columns
}
