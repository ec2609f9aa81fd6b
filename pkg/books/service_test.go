package books

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateBook_AnnouncesToActiveUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.insertUser(t, "a@example.com")
	env.insertUser(t, "b@example.com")

	book := env.createBook(t, "Dune", "Frank Herbert")
	assert.NotEmpty(t, book.ID)

	notifications := []*models.Notification{}
	require.NoError(t, env.db.NewSelect().Model(&notifications).Scan(context.Background()))
	require.Len(t, notifications, 2)
	assert.Equal(t, "New book", notifications[0].Title)
	assert.Equal(t, "Dune by Frank Herbert was added to the library.", notifications[0].Message)
	require.NotNil(t, notifications[0].BookID)
	assert.Equal(t, book.ID, *notifications[0].BookID)
}

func TestService_ListBooks_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)

	env.createBook(t, "Dune", "Frank Herbert")
	env.createBook(t, "Children of Dune", "Frank Herbert")
	env.createBook(t, "Hyperion", "Dan Simmons")
	env.createBook(t, "100% Pure", "Someone")

	books, total, err := env.service.ListBooksWithTotal(ctx, ListBooksOptions{Query: pointerutil.String("dune")})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Children of Dune", books[0].Title)

	_, total, err = env.service.ListBooksWithTotal(ctx, ListBooksOptions{Query: pointerutil.String("simmons")})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = env.service.ListBooksWithTotal(ctx, ListBooksOptions{Query: pointerutil.String("%")})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	books, total, err = env.service.ListBooksWithTotal(ctx, ListBooksOptions{Limit: pointerutil.Int(2), Offset: pointerutil.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, books, 2)
}

func TestService_AddFile_PDF(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.createBook(t, "Scanned", "")

	data := minimalPDF(3)
	file, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "scan.pdf", Size: int64(len(data)), Content: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindPDF, file.Kind)
	assert.Equal(t, models.MimeTypePDF, file.MimeType)
	require.NotNil(t, file.PageCount)
	assert.Equal(t, 3, *file.PageCount)

	got, rc, err := env.service.OpenFile(ctx, book.ID, file.ID)
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, content)
	assert.Equal(t, "scan.pdf", got.Filename)
}

func TestService_AddFile_EPUBFillsMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.createBook(t, "Working Title", "")

	data := minimalEPUB(t, "Real Title", "Octavia E. Butler")
	file, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "kindred.epub", Size: int64(len(data)), Content: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, models.FileKindEPUB, file.Kind)
	assert.Nil(t, file.PageCount)

	reloaded, err := env.service.RetrieveBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Working Title", reloaded.Title)
	assert.Equal(t, "Octavia E. Butler", reloaded.Author)
	assert.Equal(t, "en", reloaded.Language)
	require.NotNil(t, reloaded.PublishedYear)
	assert.Equal(t, 2001, *reloaded.PublishedYear)
	require.Len(t, reloaded.Files, 1)
}

func TestService_AddFile_ReplacesSameKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.createBook(t, "Versions", "")

	first := minimalPDF(1)
	_, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "v1.pdf", Size: int64(len(first)), Content: bytes.NewReader(first)})
	require.NoError(t, err)

	second := minimalPDF(2)
	_, err = env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "v2.pdf", Size: int64(len(second)), Content: bytes.NewReader(second)})
	require.NoError(t, err)

	reloaded, err := env.service.RetrieveBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Files, 1)
	assert.Equal(t, "v2.pdf", reloaded.Files[0].Filename)

	// The first version's blob is gone.
	assert.Equal(t, 1, env.count(t, (*models.Blob)(nil)))
}

func TestService_AddFile_SharedBlobSurvivesReplace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createBook(t, "A", "")
	b := env.createBook(t, "B", "")

	shared := minimalPDF(1)
	for _, book := range []*models.Book{a, b} {
		_, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "same.pdf", Size: int64(len(shared)), Content: bytes.NewReader(shared)})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.count(t, (*models.Blob)(nil)))

	other := minimalPDF(4)
	_, err := env.service.AddFile(ctx, a.ID, AddFileOptions{Filename: "other.pdf", Size: int64(len(other)), Content: bytes.NewReader(other)})
	require.NoError(t, err)

	// Book B still points at the shared blob.
	assert.Equal(t, 2, env.count(t, (*models.Blob)(nil)))
}

func TestService_AddFile_Unsupported(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.createBook(t, "Plain", "")

	data := []byte("just some text, not a book")
	_, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "notes.txt", Size: int64(len(data)), Content: bytes.NewReader(data)})

	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusUnsupportedMediaType, errResp.HTTPCode)
	assert.Equal(t, 0, env.count(t, (*models.Blob)(nil)))
}

func TestService_DeleteBook_RemovesBlobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.createBook(t, "Doomed", "")

	data := minimalPDF(1)
	_, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "d.pdf", Size: int64(len(data)), Content: bytes.NewReader(data)})
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteBook(ctx, book.ID))

	_, err = env.service.RetrieveBook(ctx, book.ID)
	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusNotFound, errResp.HTTPCode)

	assert.Equal(t, 0, env.count(t, (*models.BookFile)(nil)))
	assert.Equal(t, 0, env.count(t, (*models.Blob)(nil)))
	assert.Equal(t, 0, env.count(t, (*models.BlobChunk)(nil)))
}

func TestService_SweepOrphanBlobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.createBook(t, "Kept", "")

	data := minimalPDF(1)
	_, err := env.service.AddFile(ctx, book.ID, AddFileOptions{Filename: "k.pdf", Size: int64(len(data)), Content: bytes.NewReader(data)})
	require.NoError(t, err)

	// A blob stored without a file pointing at it.
	_, err = env.service.blobs.Put(ctx, bytes.NewReader([]byte("stray bytes")), "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, 2, env.count(t, (*models.Blob)(nil)))

	removed, err := env.service.SweepOrphanBlobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, env.count(t, (*models.Blob)(nil)))

	removed, err = env.service.SweepOrphanBlobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
