package users

import (
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all user routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db)

	h := &handler{
		userService: userService,
	}

	users := e.Group("/users")

	// All user routes require authentication
	users.Use(authMiddleware.Authenticate)

	users.GET("", h.list, authMiddleware.RequireAdmin)
	users.GET("/:id", h.retrieve, authMiddleware.RequireAdmin)
	users.PATCH("/:id", h.update, authMiddleware.RequireAdmin)

	// Anyone can reset their own password; resetting someone else's is
	// checked in the handler.
	users.POST("/:id/reset-password", h.resetPassword)

	return userService
}
