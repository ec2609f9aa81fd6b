package settings

import (
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		settingsService: NewService(db),
	}

	g := e.Group("/settings")
	g.Use(authMiddleware.Authenticate)

	g.GET("/reader", h.getReaderSettings)
	g.PUT("/reader", h.updateReaderSettings)
}
