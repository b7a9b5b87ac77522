package factory

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"e2e-infra/poolserver/pkg/pool"
)

// MySQLSession returns a pool.Factory that checks a dedicated connection out
// of the shared sqlx handle. Layering the bounded pool on top gives the
// priority queue, retry accounting and telemetry that database/sql's own
// pool does not expose.
func MySQLSession(db *sqlx.DB, timeout time.Duration) pool.Factory[*sqlx.Conn] {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func() (*sqlx.Conn, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return db.Connx(ctx)
	}
}

// CloseMySQLSession 归还底层连接
func CloseMySQLSession(conn *sqlx.Conn) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}
