package books

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	bookService   *Service
	maxUploadSize int64
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	book, err := h.bookService.RetrieveBook(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, book)
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Query:  params.Query,
	})
	if err != nil {
		return err
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, total}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book := &models.Book{
		Title:         params.Title,
		Author:        params.Author,
		Description:   params.Description,
		Language:      params.Language,
		PublishedYear: params.PublishedYear,
	}
	if err := h.bookService.CreateBook(ctx, book); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, book)
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Fetch the book.
	book, err := h.bookService.RetrieveBook(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	// Keep track of what's been changed.
	opts := UpdateBookOptions{Columns: []string{}}

	if params.Title != nil && *params.Title != book.Title {
		book.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Author != nil && *params.Author != book.Author {
		book.Author = *params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.Description != nil && *params.Description != book.Description {
		book.Description = *params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.Language != nil && *params.Language != book.Language {
		book.Language = *params.Language
		opts.Columns = append(opts.Columns, "language")
	}
	if params.PublishedYear != nil {
		book.PublishedYear = params.PublishedYear
		opts.Columns = append(opts.Columns, "published_year")
	}

	// Update the model.
	err = h.bookService.UpdateBook(ctx, book, opts)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, book)
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.bookService.DeleteBook(ctx, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) uploadFile(c echo.Context) error {
	ctx := c.Request().Context()

	params := UploadFilePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	fh, ok := params.FormFiles["file"]
	if !ok {
		return errcodes.ValidationError(`"file" is required`)
	}
	if fh.Size > h.maxUploadSize {
		return errcodes.PayloadTooLarge(h.maxUploadSize)
	}

	f, err := fh.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	file, err := h.bookService.AddFile(ctx, c.Param("id"), AddFileOptions{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, file)
}

func (h *handler) downloadFile(c echo.Context) error {
	ctx := c.Request().Context()

	file, rc, err := h.bookService.OpenFile(ctx, c.Param("id"), c.Param("fileId"))
	if err != nil {
		return err
	}
	defer rc.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": file.Filename}))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(file.Size, 10))

	return c.Stream(http.StatusOK, file.MimeType, rc)
}
