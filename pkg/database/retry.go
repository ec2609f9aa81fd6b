package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

// driverConnector adapts a plain driver.Driver to driver.Connector so it can
// be wrapped the same way as drivers that implement DriverContext.
type driverConnector struct {
	driver driver.Driver
	dsn    string
}

func newDriverConnector(drv driver.Driver, dsn string) *driverConnector {
	return &driverConnector{driver: drv, dsn: dsn}
}

func (dc *driverConnector) Connect(_ context.Context) (driver.Conn, error) {
	return dc.driver.Open(dc.dsn)
}

func (dc *driverConnector) Driver() driver.Driver {
	return dc.driver
}

// busyPolicy decides how long to back off between attempts when SQLite
// reports that the database is locked.
type busyPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func newBusyPolicy(maxRetries int) busyPolicy {
	return busyPolicy{
		maxRetries: maxRetries,
		baseDelay:  50 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

// delay returns the backoff for the given zero-based attempt, with up to 25%
// jitter, capped at maxDelay.
func (p busyPolicy) delay(attempt int) time.Duration {
	d := p.baseDelay * time.Duration(1<<attempt)
	if quarter := int64(d / 4); quarter > 0 {
		d += time.Duration(rand.Int63n(quarter))
	}
	if d > p.maxDelay {
		d = p.maxDelay
	}
	return d
}

// do runs fn until it succeeds, fails with a non-busy error, runs out of
// attempts, or ctx is done.
func (p busyPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if !isBusyError(err) || attempt >= p.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
}

// isBusyError matches the SQLITE_BUSY and SQLITE_LOCKED messages produced by
// both mattn/go-sqlite3 and modernc.org/sqlite.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"(5)",
		"(6)",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type retryConnector struct {
	connector driver.Connector
	policy    busyPolicy
}

func newRetryConnector(connector driver.Connector, maxRetries int) *retryConnector {
	return &retryConnector{connector: connector, policy: newBusyPolicy(maxRetries)}
}

func (rc *retryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := rc.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &retryConn{Conn: conn, policy: rc.policy}, nil
}

func (rc *retryConnector) Driver() driver.Driver {
	return rc.connector.Driver()
}

// retryConn retries transaction starts and direct exec/query calls. Prepared
// statements aren't wrapped: bun interpolates arguments itself and goes
// through ExecContext/QueryContext.
type retryConn struct {
	driver.Conn
	policy busyPolicy
}

func (c *retryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var tx driver.Tx
	err := c.policy.do(ctx, func() error {
		var err error
		if b, ok := c.Conn.(driver.ConnBeginTx); ok {
			tx, err = b.BeginTx(ctx, opts)
		} else {
			tx, err = c.Conn.Begin() //nolint:staticcheck // fallback for drivers without BeginTx
		}
		return err
	})
	return tx, err
}

func (c *retryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var result driver.Result
	err := c.policy.do(ctx, func() error {
		var err error
		result, err = execer.ExecContext(ctx, query, args)
		return err
	})
	return result, err
}

func (c *retryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	var rows driver.Rows
	err := c.policy.do(ctx, func() error {
		var err error
		rows, err = queryer.QueryContext(ctx, query, args)
		return err
	})
	return rows, err
}

func (c *retryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		return p.PrepareContext(ctx, query)
	}
	return c.Conn.Prepare(query)
}

func (c *retryConn) Ping(ctx context.Context) error {
	if pinger, ok := c.Conn.(driver.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (c *retryConn) ResetSession(ctx context.Context) error {
	if resetter, ok := c.Conn.(driver.SessionResetter); ok {
		return resetter.ResetSession(ctx)
	}
	return nil
}

func (c *retryConn) IsValid() bool {
	if validator, ok := c.Conn.(driver.Validator); ok {
		return validator.IsValid()
	}
	return true
}
