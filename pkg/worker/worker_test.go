package worker

import (
	"context"
	"testing"
	"time"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunsMaintenanceTasks(t *testing.T) {
	ctx := context.Background()
	w, db, results := newTestWorker(t, 10*time.Millisecond)

	now := time.Now()
	otps := []*models.SignupOTP{
		{CreatedAt: now.Add(-time.Hour), Email: "old@example.com", PasswordHash: "x", CodeHash: "x", ExpiresAt: now.Add(-time.Minute)},
		{CreatedAt: now, Email: "new@example.com", PasswordHash: "x", CodeHash: "x", ExpiresAt: now.Add(time.Hour)},
	}
	_, err := db.NewInsert().Model(&otps).Exec(ctx)
	require.NoError(t, err)

	blob := &models.Blob{ID: "deadbeef", CreatedAt: now, Size: 3, MimeType: "text/plain"}
	_, err = db.NewInsert().Model(blob).Exec(ctx)
	require.NoError(t, err)

	w.Start()

	r := waitForTask(t, results, TaskExpiredOTPs)
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.removed)

	r = waitForTask(t, results, TaskOrphanBlobs)
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.removed)

	w.Shutdown()

	var emails []string
	err = db.NewSelect().Model((*models.SignupOTP)(nil)).Column("email").Scan(ctx, &emails)
	require.NoError(t, err)
	assert.Equal(t, []string{"new@example.com"}, emails)

	count, err := db.NewSelect().Model((*models.Blob)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWorker_KeepsRunningAfterTaskError(t *testing.T) {
	w, _, results := newTestWorker(t, 10*time.Millisecond)

	calls := 0
	w.register("failing", func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})

	w.Start()
	r := waitForTask(t, results, "failing")
	assert.EqualError(t, r.err, "boom")
	r = waitForTask(t, results, "failing")
	assert.EqualError(t, r.err, "boom")
	w.Shutdown()

	assert.GreaterOrEqual(t, calls, 2)
}

func TestWorker_ShutdownBeforeFirstTick(t *testing.T) {
	w, _, results := newTestWorker(t, time.Hour)

	w.Start()

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
	assert.Empty(t, results)
}
