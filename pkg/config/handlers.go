package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	configService *Service
}

// retrieve is public and cacheable since the values only change on restart.
func (h *handler) retrieve(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	return errors.WithStack(c.JSON(http.StatusOK, h.configService.RetrievePublicConfig()))
}
