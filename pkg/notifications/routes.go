package notifications

import (
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
)

// RegisterRoutes registers all notification routes.
func RegisterRoutes(e *echo.Echo, notificationService *Service, authMiddleware *auth.Middleware) {
	h := &handler{notificationService: notificationService}

	g := e.Group("/notifications", authMiddleware.Authenticate)
	g.GET("", h.list)
	g.POST("", h.create, authMiddleware.RequireAdmin)
	g.POST("/read-all", h.markAllRead)
	g.POST("/:id/read", h.markRead)
}
