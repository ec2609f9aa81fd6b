package config

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the public config route. It is read by the
// frontend before login so it isn't behind authentication.
func RegisterRoutes(e *echo.Echo, cfg *Config) {
	h := &handler{configService: NewService(cfg)}

	e.GET("/config", h.retrieve)
}
