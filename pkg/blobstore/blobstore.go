// Package blobstore keeps book files in the database as content-addressed
// chunks. A blob's ID is the hex SHA-256 of its bytes, so storing the same
// file twice keeps a single copy.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"time"

	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type Store struct {
	db        *bun.DB
	chunkSize int
	maxSize   int64
}

func New(db *bun.DB, cfg *config.Config) *Store {
	return &Store{
		db:        db,
		chunkSize: cfg.BlobChunkSize,
		maxSize:   cfg.MaxUploadSize,
	}
}

// Put reads r to the end and stores its content. Content larger than the
// configured upload limit is rejected with a 413 before anything is written.
func (s *Store) Put(ctx context.Context, r io.Reader, mimeType string) (*models.Blob, error) {
	h := sha256.New()
	lr := &io.LimitedReader{R: r, N: s.maxSize + 1}

	var chunks [][]byte
	var size int64
	for {
		buf := make([]byte, s.chunkSize)
		n, err := io.ReadFull(lr, buf)
		if n > 0 {
			size += int64(n)
			if size > s.maxSize {
				return nil, errcodes.PayloadTooLarge(s.maxSize)
			}
			h.Write(buf[:n])
			chunks = append(chunks, buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	blob := &models.Blob{
		ID:         hex.EncodeToString(h.Sum(nil)),
		CreatedAt:  time.Now(),
		Size:       size,
		MimeType:   mimeType,
		ChunkSize:  s.chunkSize,
		ChunkCount: len(chunks),
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(blob).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Same bytes are already stored.
			return nil
		}

		for i, data := range chunks {
			chunk := &models.BlobChunk{BlobID: blob.ID, N: i, Data: data}
			if _, err := tx.NewInsert().Model(chunk).Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("blob stored", logger.Data{"blob_id": blob.ID, "size": size, "chunks": len(chunks)})

	return s.Stat(ctx, blob.ID)
}

// Stat returns the blob's metadata.
func (s *Store) Stat(ctx context.Context, id string) (*models.Blob, error) {
	blob := &models.Blob{}
	err := s.db.NewSelect().
		Model(blob).
		Where("bl.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Blob")
		}
		return nil, errors.WithStack(err)
	}
	return blob, nil
}

// Open returns a reader over the blob's bytes. Chunks are loaded one at a
// time as the reader advances.
func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, *models.Blob, error) {
	blob, err := s.Stat(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &reader{ctx: ctx, db: s.db, blob: blob}, blob, nil
}

// Delete removes the blob and its chunks.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.BlobChunk)(nil)).
			Where("blob_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = tx.NewDelete().
			Model((*models.Blob)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

type reader struct {
	ctx  context.Context
	db   *bun.DB
	blob *models.Blob
	next int
	buf  bytes.Reader
}

func (r *reader) Read(p []byte) (int, error) {
	for r.buf.Len() == 0 {
		if r.next >= r.blob.ChunkCount {
			return 0, io.EOF
		}
		chunk := &models.BlobChunk{}
		err := r.db.NewSelect().
			Model(chunk).
			Where("bc.blob_id = ?", r.blob.ID).
			Where("bc.n = ?", r.next).
			Scan(r.ctx)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to load chunk %d of blob %s", r.next, r.blob.ID)
		}
		r.buf.Reset(chunk.Data)
		r.next++
	}
	return r.buf.Read(p)
}

func (r *reader) Close() error {
	r.next = r.blob.ChunkCount
	r.buf.Reset(nil)
	return nil
}
