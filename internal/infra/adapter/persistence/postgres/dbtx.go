package postgres

import (
	"context"
	"database/sql"
	"time"

	"vetcare/internal/observability/metrics"
)

// DBTX is satisfied by *sql.DB, *sql.Tx and circuitbreaker.DBCircuitBreaker.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// affected reports whether res touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// observe records the duration of a scan-path query.
func observe(op string, start time.Time) {
	metrics.RecordDBQuery(op, time.Since(start))
}
