package auth

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"golang.org/x/time/rate"
)

// credentialRateLimiter throttles the endpoints that accept a password or a
// signup code, keyed by client IP. Idle clients are forgotten after
// expiresIn.
func credentialRateLimiter(limit float64, burst int, expiresIn time.Duration) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     burst,
		ExpiresIn: expiresIn,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, _ error) error {
			return errcodes.TooManyRequests()
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return errcodes.TooManyRequests()
		},
	})
}
