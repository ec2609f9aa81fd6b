package books

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/binder"
	"github.com/marginalia-app/marginalia/pkg/blobstore"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/migrations"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/notifications"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testEnv struct {
	db      *bun.DB
	cfg     *config.Config
	service *Service
	handler *handler
	echo    *echo.Echo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	cfg := config.NewForTest()
	svc := NewService(db, blobstore.New(db, cfg), notifications.NewService(db))

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return &testEnv{
		db:      db,
		cfg:     cfg,
		service: svc,
		handler: &handler{bookService: svc, maxUploadSize: cfg.MaxUploadSize},
		echo:    e,
	}
}

func (env *testEnv) insertUser(t *testing.T, email string) *models.User {
	t.Helper()
	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        email,
		PasswordHash: "x",
		Role:         models.RoleReader,
		IsActive:     true,
	}
	_, err := env.db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

func (env *testEnv) createBook(t *testing.T, title, author string) *models.Book {
	t.Helper()
	book := &models.Book{Title: title, Author: author}
	require.NoError(t, env.service.CreateBook(context.Background(), book))
	return book
}

func (env *testEnv) context(method, target, contentType string, body []byte, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rr := httptest.NewRecorder()
	c := env.echo.NewContext(req, rr)
	if len(params) > 0 {
		names := []string{}
		values := []string{}
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rr
}

func (env *testEnv) jsonContext(method, target, payload string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	return env.context(method, target, echo.MIMEApplicationJSON, []byte(payload), params...)
}

func (env *testEnv) uploadContext(t *testing.T, bookID, filename string, content []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return env.context(http.MethodPost, "/books/"+bookID+"/files", mw.FormDataContentType(), body.Bytes(), "id", bookID)
}

func (env *testEnv) count(t *testing.T, model interface{}) int {
	t.Helper()
	n, err := env.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

// minimalPDF builds a valid PDF with the given number of empty pages.
func minimalPDF(pages int) []byte {
	buf := &bytes.Buffer{}
	offsets := []int{}
	write := func(obj string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	write("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	write(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		write(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n", 3+i))
	}

	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// minimalEPUB builds an EPUB whose OPF carries the given title and author.
func minimalEPUB(t *testing.T, title, author string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/epub+zip"))
	require.NoError(t, err)

	w, err = zw.Create("META-INF/container.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`))
	require.NoError(t, err)

	w, err = zw.Create("OEBPS/content.opf")
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>%s</dc:title>
    <dc:creator opf:role="aut">%s</dc:creator>
    <dc:language>en</dc:language>
    <dc:date>2001</dc:date>
  </metadata>
</package>`, title, author)
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}
