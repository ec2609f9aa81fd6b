package annotations

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/auth"
	"github.com/marginalia-app/marginalia/pkg/binder"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/migrations"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

type testServer struct {
	db      *bun.DB
	echo    *echo.Echo
	auth    *auth.Service
	service *Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := newTestDB(t)
	authService := auth.NewService(db, config.NewForTest(), auth.LogSender{})

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	service := RegisterRoutes(e, db, auth.NewMiddleware(authService))

	return &testServer{db: db, echo: e, auth: authService, service: service}
}

// signIn creates a user with the given ID and returns a session token for it.
func (s *testServer) signIn(t *testing.T, id, role string) string {
	t.Helper()

	now := time.Now()
	user := &models.User{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	_, err := s.db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)

	token, err := s.auth.GenerateToken(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, target, token, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	if payload != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.echo.ServeHTTP(rr, req)
	return rr
}

func strptr(s string) *string {
	return &s
}
