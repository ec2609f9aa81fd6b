package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/marginalia-app/marginalia/pkg/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type taskResult struct {
	name    string
	removed int
	err     error
}

// newTestWorker returns a worker over an in-memory database whose completed
// tasks are reported on the returned channel.
func newTestWorker(t *testing.T, interval time.Duration) (*Worker, *bun.DB, <-chan taskResult) {
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

	cfg := config.NewForTest()
	cfg.CleanupInterval = interval

	results := make(chan taskResult, 64)
	w := New(cfg, db)
	w.onTaskCompletion = func(name string, removed int, err error) {
		select {
		case results <- taskResult{name, removed, err}:
		default:
		}
	}
	return w, db, results
}

func waitForTask(t *testing.T, results <-chan taskResult, name string) taskResult {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case r := <-results:
			if r.name == name {
				return r
			}
		case <-timeout:
			t.Fatalf("task %q never ran", name)
		}
	}
}
