package annotations

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/pkg/errors"
)

type handler struct {
	annotationService *Service
}

func (h *handler) saveEpub(c echo.Context) error {
	ctx := c.Request().Context()

	params := SaveEpubPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, bookID, err := resolveTarget(c, params.UserID, params.BookID)
	if err != nil {
		return err
	}

	record, err := h.annotationService.SaveEpubAnnotations(ctx, SaveEpubOptions{
		UserID:         userID,
		BookID:         bookID,
		CFIRange:       params.CFIRange,
		Content:        params.Content,
		HighlightColor: params.HighlightColor,
		SelectedText:   params.SelectedText,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SaveEpubResponse{
		Message:    "Annotation saved successfully",
		Annotation: record,
	})
}

func (h *handler) retrieveEpub(c echo.Context) error {
	ctx := c.Request().Context()

	if err := authorizeUser(c, c.Param("userId")); err != nil {
		return err
	}

	record, err := h.annotationService.GetEpubAnnotations(ctx, c.Param("userId"), c.Param("bookId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}

func (h *handler) savePdf(c echo.Context) error {
	ctx := c.Request().Context()

	// Highlight objects come straight from the PDF reader and may carry
	// fields the server doesn't keep.
	c.Set("disallow_unknown_fields", false)

	params := SavePdfPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, bookID, err := resolveTarget(c, params.UserID, params.BookID)
	if err != nil {
		return err
	}

	record, created, err := h.annotationService.SavePdfAnnotations(ctx, SavePdfOptions{
		UserID:          userID,
		BookID:          bookID,
		Highlights:      params.Highlights,
		PostAnnotations: params.PostAnnotations,
	})
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, record)
}

func (h *handler) retrievePdf(c echo.Context) error {
	ctx := c.Request().Context()

	if err := authorizeUser(c, c.Param("userId")); err != nil {
		return err
	}

	record, err := h.annotationService.GetPdfAnnotations(ctx, c.Param("userId"), c.Param("bookId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}

// resolveTarget picks the user and book a save applies to. The book comes
// from the path; a body bookId must agree with it. The user defaults to the
// signed-in user.
func resolveTarget(c echo.Context, bodyUserID, bodyBookID string) (string, string, error) {
	bookID := c.Param("bookId")
	if bodyBookID != "" && bodyBookID != bookID {
		return "", "", errcodes.BadRequest("bookId in the body doesn't match the URL.", "book_id_mismatch")
	}

	user, err := auth.UserFromContext(c)
	if err != nil {
		return "", "", err
	}
	userID := bodyUserID
	if userID == "" {
		userID = user.ID
	}
	if err := authorizeUser(c, userID); err != nil {
		return "", "", err
	}
	return userID, bookID, nil
}

func authorizeUser(c echo.Context, userID string) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	if !user.CanAccessUser(userID) {
		return errcodes.Forbidden("Accessing another user's annotations")
	}
	return nil
}
