package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate validates the session token from the cookie or the
// Authorization header, reloads the user, and stores it on the context. It
// returns 401 when there is no valid session for an active user.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := tokenFromRequest(c)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		user, err := m.authService.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found or inactive")
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)

		return next(c)
	}
}

// RequireAdmin rejects users that aren't admins. Must be used after
// Authenticate.
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get("user").(*models.User)
		if !ok {
			return errcodes.Unauthorized("Authentication required")
		}
		if !user.IsAdmin() {
			return errcodes.Forbidden("This action")
		}
		return next(c)
	}
}

// UserFromContext returns the user stored by Authenticate.
func UserFromContext(c echo.Context) (*models.User, error) {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return nil, errcodes.Unauthorized("Authentication required")
	}
	return user, nil
}

func tokenFromRequest(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
