package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/marginalia-app/marginalia/pkg/binder"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, method, target, payload string, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	c := e.NewContext(req, rr)
	c.Set("user", user)
	return c, rr
}

func TestHandler_CreateAndList(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	h := &handler{notificationService: NewService(db)}

	admin := insertUser(t, db, "admin@example.com", true)
	reader := insertUser(t, db, "reader@example.com", true)

	c, rr := newTestContext(t, http.MethodPost, "/notifications", `{"title":"Maintenance","message":"Back soon"}`, admin)
	require.NoError(t, h.create(c))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"created":2}`, rr.Body.String())

	c, rr = newTestContext(t, http.MethodGet, "/notifications?unread=true", "", reader)
	require.NoError(t, h.list(c))

	var resp struct {
		Notifications []*models.Notification `json:"notifications"`
		Total         int                    `json:"total"`
		Unread        int                    `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.Unread)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Maintenance", resp.Notifications[0].Title)
}

func TestHandler_MarkRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)
	h := &handler{notificationService: svc}

	reader := insertUser(t, db, "reader@example.com", true)
	created, err := svc.Create(ctx, CreateOptions{UserID: &reader.ID, Title: "Hello"})
	require.NoError(t, err)

	c, rr := newTestContext(t, http.MethodPost, "/notifications/"+created[0].ID+"/read", "", reader)
	c.SetPath("/notifications/:id/read")
	c.SetParamNames("id")
	c.SetParamValues(created[0].ID)
	require.NoError(t, h.markRead(c))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"readAt":"`)

	c, rr = newTestContext(t, http.MethodPost, "/notifications/read-all", "", reader)
	require.NoError(t, h.markAllRead(c))
	assert.JSONEq(t, `{"updated":0}`, rr.Body.String())
}

func TestHandler_Create_RequiresTitle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	h := &handler{notificationService: NewService(db)}
	admin := insertUser(t, db, "admin@example.com", true)

	c, _ := newTestContext(t, http.MethodPost, "/notifications", `{"message":"no title"}`, admin)
	err := h.create(c)

	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, errResp.HTTPCode)
}
