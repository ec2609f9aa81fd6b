package settings

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
)

type handler struct {
	settingsService *Service
}

func (h *handler) getReaderSettings(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	settings, err := h.settingsService.GetReaderSettings(ctx, user.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, newReaderSettingsResponse(settings))
}

func (h *handler) updateReaderSettings(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}

	var payload ReaderSettingsPayload
	if err := c.Bind(&payload); err != nil {
		return errors.WithStack(err)
	}

	settings, err := h.settingsService.UpdateReaderSettings(ctx, user.ID, UpdateReaderSettingsOptions(payload))
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, newReaderSettingsResponse(settings))
}

func newReaderSettingsResponse(settings *models.ReaderSettings) ReaderSettingsResponse {
	return ReaderSettingsResponse{
		EpubFontSize: settings.EpubFontSize,
		EpubTheme:    settings.EpubTheme,
		PdfZoom:      settings.PdfZoom,
	}
}
