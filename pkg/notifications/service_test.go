package notifications

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marginalia-app/marginalia/pkg/errcodes"
	"github.com/marginalia-app/marginalia/pkg/migrations"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
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

func insertUser(t *testing.T, db *bun.DB, email string, active bool) *models.User {
	t.Helper()
	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Email:        email,
		PasswordHash: "x",
		Role:         models.RoleReader,
		IsActive:     active,
	}
	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

func TestService_Create_Broadcast(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	alice := insertUser(t, db, "alice@example.com", true)
	bob := insertUser(t, db, "bob@example.com", true)
	insertUser(t, db, "gone@example.com", false)

	created, err := svc.Create(ctx, CreateOptions{Title: "New book", Message: "Dune is here", BookID: pointerutil.String("b1")})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	for _, user := range []*models.User{alice, bob} {
		list, total, err := svc.List(ctx, ListOptions{UserID: user.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, "New book", list[0].Title)
		require.NotNil(t, list[0].BookID)
		assert.Equal(t, "b1", *list[0].BookID)
		assert.Nil(t, list[0].ReadAt)
	}
}

func TestService_Create_SingleUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	alice := insertUser(t, db, "alice@example.com", true)
	bob := insertUser(t, db, "bob@example.com", true)

	_, err := svc.Create(ctx, CreateOptions{UserID: &alice.ID, Title: "Hi"})
	require.NoError(t, err)

	_, total, err := svc.List(ctx, ListOptions{UserID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, err = svc.Create(ctx, CreateOptions{UserID: pointerutil.String("nobody"), Title: "Hi"})
	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusNotFound, errResp.HTTPCode)
}

func TestService_MarkRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db)

	alice := insertUser(t, db, "alice@example.com", true)
	bob := insertUser(t, db, "bob@example.com", true)

	_, err := svc.Create(ctx, CreateOptions{UserID: &alice.ID, Title: "First"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateOptions{UserID: &alice.ID, Title: "Second"})
	require.NoError(t, err)

	list, _, err := svc.List(ctx, ListOptions{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Someone else's notification looks like it doesn't exist.
	_, err = svc.MarkRead(ctx, bob.ID, list[0].ID)
	var errResp *errcodes.Error
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, http.StatusNotFound, errResp.HTTPCode)

	read, err := svc.MarkRead(ctx, alice.ID, list[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)

	unread, total, err := svc.List(ctx, ListOptions{UserID: alice.ID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NotEqual(t, list[0].ID, unread[0].ID)

	count, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err := svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err = svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
