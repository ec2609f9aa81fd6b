package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/marginalia-app/marginalia/pkg/annotations"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/binder"
	"github.com/marginalia-app/marginalia/pkg/blobstore"
	"github.com/marginalia-app/marginalia/pkg/books"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/notifications"
	"github.com/marginalia-app/marginalia/pkg/settings"
	"github.com/marginalia-app/marginalia/pkg/testutils"
	"github.com/marginalia-app/marginalia/pkg/users"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e, err := newEcho(cfg, db)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORSWithConfig(corsConfig(cfg)))

	health.RegisterRoutes(e)
	config.RegisterRoutes(e, cfg)

	authService := auth.NewService(db, cfg, auth.LogSender{})
	authMiddleware := auth.NewMiddleware(authService)
	auth.RegisterRoutes(e, authService, authMiddleware)
	users.RegisterRoutes(e, db, authMiddleware)

	notificationService := notifications.NewService(db)
	notifications.RegisterRoutes(e, notificationService, authMiddleware)

	blobs := blobstore.New(db, cfg)
	books.RegisterRoutes(e, db, cfg, blobs, notificationService, authMiddleware)

	settings.RegisterRoutes(e, db, authMiddleware)
	annotations.RegisterRoutes(e, db, authMiddleware)

	if cfg.IsTest() {
		testutils.RegisterRoutes(e, db, authService)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

// corsConfig allows credentialed requests from the configured origins. With
// no origins configured, any origin may call the API but cookies aren't sent.
func corsConfig(cfg *config.Config) middleware.CORSConfig {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return middleware.DefaultCORSConfig
	}
	return middleware.CORSConfig{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
