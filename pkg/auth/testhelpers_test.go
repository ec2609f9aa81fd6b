package auth

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/binder"
	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendSignupCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[email] = code
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

func setupTestDB(t *testing.T) *bun.DB {
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

func newTestService(t *testing.T) (*Service, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	return NewService(setupTestDB(t), config.NewForTest(), sender), sender
}

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	return e
}

func newTestContext(t *testing.T, payload, method, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := newTestEcho(t)
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr), rr
}

// signUp runs the full request/verify flow and returns the new user's token.
func signUp(t *testing.T, svc *Service, sender *captureSender, email string) string {
	t.Helper()
	ctx := context.Background()

	err := svc.RequestSignup(ctx, RequestSignupOptions{Email: email, Name: "Reader", Password: "correct horse"})
	require.NoError(t, err)

	user, err := svc.VerifySignup(ctx, email, sender.code(email))
	require.NoError(t, err)

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	return token
}
