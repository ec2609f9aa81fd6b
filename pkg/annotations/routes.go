package annotations

import (
	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the EPUB and PDF annotation routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	annotationService := NewService(db)

	h := &handler{
		annotationService: annotationService,
	}

	epub := e.Group("/annotations", authMiddleware.Authenticate)
	epub.POST("/:bookId", h.saveEpub)
	epub.GET("/:userId/:bookId", h.retrieveEpub)

	pdf := e.Group("/pdf/annotations", authMiddleware.Authenticate)
	pdf.POST("/:bookId", h.savePdf)
	pdf.GET("/:userId/:bookId", h.retrievePdf)

	return annotationService
}
