package auth

import (
	"time"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all auth routes.
func RegisterRoutes(e *echo.Echo, authService *Service, authMiddleware *Middleware) {
	h := &handler{
		authService: authService,
	}

	credentials := []echo.MiddlewareFunc{}
	if authService.authRateLimit > 0 {
		credentials = append(credentials, credentialRateLimiter(authService.authRateLimit, authService.authRateBurst, 10*time.Minute))
	}

	auth := e.Group("/auth")
	auth.GET("/status", h.status)
	auth.POST("/signup", h.signup, credentials...)
	auth.POST("/verify", h.verify, credentials...)
	auth.POST("/login", h.login, credentials...)
	auth.POST("/logout", h.logout)
	auth.GET("/me", h.me, authMiddleware.Authenticate)
}
