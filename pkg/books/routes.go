package books

import (
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/blobstore"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/notifications"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all book routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, blobs *blobstore.Store, notificationService *notifications.Service, authMiddleware *auth.Middleware) *Service {
	bookService := NewService(db, blobs, notificationService)

	h := &handler{
		bookService:   bookService,
		maxUploadSize: cfg.MaxUploadSize,
	}

	g := e.Group("/books", authMiddleware.Authenticate)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/files/:fileId", h.downloadFile)

	g.POST("", h.create, authMiddleware.RequireAdmin)
	g.PATCH("/:id", h.update, authMiddleware.RequireAdmin)
	g.DELETE("/:id", h.delete, authMiddleware.RequireAdmin)
	g.POST("/:id/files", h.uploadFile, authMiddleware.RequireAdmin)

	return bookService
}
