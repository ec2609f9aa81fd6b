package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/marginalia-app/marginalia/pkg/config"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	data := logger.Data{"duration_ms": time.Since(event.StartTime).Milliseconds()}
	if event.Err != nil {
		data["error"] = event.Err.Error()
	}
	qh.log.Debug(event.Query, data)
}

func New(cfg *config.Config) (*bun.DB, error) {
	// Get the underlying SQLite driver and create a connector with retry logic.
	drv := sqliteshim.Driver()
	var connector driver.Connector
	if drvCtx, ok := drv.(driver.DriverContext); ok {
		c, err := drvCtx.OpenConnector(cfg.DatabaseFilePath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		connector = c
	} else {
		connector = newDriverConnector(drv, cfg.DatabaseFilePath)
	}

	// Wrap the connector with retry logic for SQLITE_BUSY errors.
	retryConnector := newRetryConnector(connector, cfg.DatabaseMaxRetries)
	sqldb := sql.OpenDB(retryConnector)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// print out all queries in debug mode
	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	// SQLite allows a single writer, so every statement goes through one
	// connection. This also keeps an in-memory database alive for the life of
	// the pool. Code running inside RunInTx must only use the tx it's given.
	sqldb.SetMaxOpenConns(1)

	// Retry up to a few times to ensure that the database can connect.
	var err error
	for i := 0; i < cfg.DatabaseConnectRetryCount; i++ {
		_, err = db.Exec("SELECT 1")
		if err != nil {
			time.Sleep(cfg.DatabaseConnectRetryDelay)
			continue
		}
		// We've successfully connected.
		break
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Configure SQLite for better concurrency handling.
	// WAL mode allows concurrent reads during writes.
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	// busy_timeout makes SQLite wait before returning SQLITE_BUSY.
	// This handles short-term lock contention automatically.
	busyTimeoutMs := cfg.DatabaseBusyTimeout.Milliseconds()
	_, err = db.Exec("PRAGMA busy_timeout=?", busyTimeoutMs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to set busy_timeout")
	}

	// Book files reference blobs and notifications reference users, so the
	// cascades in the schema need foreign keys switched on.
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	return db, nil
}
