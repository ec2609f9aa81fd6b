package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig creates a config with a temp file database so that the
// connection pool and WAL settings behave the way they do in production.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "test.db")
	cfg.DatabaseMaxRetries = 0
	cfg.DatabaseBusyTimeout = 1_000_000 // 1ms
	return cfg
}

func TestNew_Pragmas(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

// TestConcurrentUpserts hammers a single (owner, key) row from many
// goroutines the way two reader tabs would save the same highlight. Every
// write has to succeed and they have to converge on one row.
func TestConcurrentUpserts(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE upsert_test (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		UNIQUE (owner, key)
	)`)
	require.NoError(t, err)

	const numWorkers = 20
	const writesPerWorker = 25

	var wg sync.WaitGroup
	var failures atomic.Int32
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < writesPerWorker; i++ {
				_, err := db.ExecContext(context.Background(),
					`INSERT INTO upsert_test (owner, key, value) VALUES (?, ?, ?)
					ON CONFLICT (owner, key) DO UPDATE SET value = excluded.value`,
					"u1", "epubcfi(/6/4)", fmt.Sprintf("worker-%d-write-%d", workerID, i),
				)
				if err != nil {
					failures.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int32(0), failures.Load(), "concurrent upserts should not fail")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM upsert_test").Scan(&count))
	assert.Equal(t, 1, count)
}

// TestConcurrentMixedOperations runs readers alongside writers.
func TestConcurrentMixedOperations(t *testing.T) {
	t.Parallel()

	db, err := New(newTestConfig(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE mixed_test (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value INTEGER NOT NULL
	)`)
	require.NoError(t, err)

	const numWorkers = 8
	const opsPerWorker = 50

	var wg sync.WaitGroup
	var errCount atomic.Int32
	var writes atomic.Int32
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				if workerID%2 == 0 {
					if _, err := db.Exec("INSERT INTO mixed_test (value) VALUES (?)", workerID*1000+i); err != nil {
						errCount.Add(1)
						continue
					}
					writes.Add(1)
					continue
				}
				var sum int
				if err := db.QueryRow("SELECT COALESCE(SUM(value), 0) FROM mixed_test").Scan(&sum); err != nil {
					errCount.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int32(0), errCount.Load())
	assert.Equal(t, int32(numWorkers/2*opsPerWorker), writes.Load())
}
