package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker guards the worker's *sql.DB. It satisfies the repositories'
// DBTX interface, so a database outage fails scheduler scans fast instead of
// letting every item of a tick wait for connection timeouts.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig opens after 5 consecutive failures and probes again after 30 seconds.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// NewDBCircuitBreaker wraps db with DBConfig.
func NewDBCircuitBreaker(db *sql.DB, listeners ...StateChangeFunc) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig(), listeners...)
}

// NewDBCircuitBreakerWithConfig wraps db with a custom configuration.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config, listeners ...StateChangeFunc) *DBCircuitBreaker {
	return &DBCircuitBreaker{
		cb: New(cfg, listeners...),
		db: db,
	}
}

// QueryContext executes a query with circuit breaker protection.
func (dcb *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	result, err := dcb.cb.Execute(func() (interface{}, error) {
		return dcb.db.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.Rows), nil
}

// ExecContext executes a statement with circuit breaker protection.
func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := dcb.cb.Execute(func() (interface{}, error) {
		return dcb.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryRowContext bypasses the breaker: *sql.Row defers its error to Scan,
// so there is no result to count.
func (dcb *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return dcb.db.QueryRowContext(ctx, query, args...)
}

// PingContext checks the database through the breaker; used by readiness probes.
func (dcb *DBCircuitBreaker) PingContext(ctx context.Context) error {
	_, err := dcb.cb.Execute(func() (interface{}, error) {
		return nil, dcb.db.PingContext(ctx)
	})
	return err
}

// State returns the current state of the circuit breaker.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen returns true if the circuit breaker is in the open state.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB returns the underlying database connection for migrations.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}
