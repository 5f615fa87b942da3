package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
)

func TestDBCircuitBreaker_QueryContext_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id FROM notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("n1"))

	dcb := NewDBCircuitBreaker(db)
	rows, err := dcb.QueryContext(context.Background(), "SELECT id FROM notifications")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_ = rows.Close()

	if dcb.State() != gobreaker.StateClosed {
		t.Errorf("expected Closed, got %s", dcb.State())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	cfg := DBConfig()
	cfg.Timeout = 50 * time.Millisecond
	opened := 0
	dcb := NewDBCircuitBreakerWithConfig(db, cfg, func(_ string, _, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			opened++
		}
	})
	ctx := context.Background()

	dbErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		mock.ExpectExec("UPDATE notifications").WillReturnError(dbErr)
	}
	for i := 0; i < 5; i++ {
		if _, err := dcb.ExecContext(ctx, "UPDATE notifications SET status = $1", "SENT"); err == nil {
			t.Errorf("attempt %d: expected error", i+1)
		}
	}

	if !dcb.IsOpen() || opened != 1 {
		t.Fatalf("expected breaker open once, state=%s opened=%d", dcb.State(), opened)
	}

	_, err = dcb.ExecContext(ctx, "UPDATE notifications SET status = $1", "SENT")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	mock.ExpectExec("UPDATE notifications").WillReturnResult(sqlmock.NewResult(0, 1))
	if _, err := dcb.ExecContext(ctx, "UPDATE notifications SET status = $1", "SENT"); err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBCircuitBreaker_QueryRowContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT status FROM notifications").
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))

	var status string
	dcb := NewDBCircuitBreaker(db)
	if err := dcb.QueryRowContext(context.Background(), "SELECT status FROM notifications WHERE id = $1", "n1").Scan(&status); err != nil {
		t.Fatalf("failed to scan row: %v", err)
	}
	if status != "PENDING" {
		t.Errorf("expected PENDING, got %s", status)
	}
}

func TestDBCircuitBreaker_PingContext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	dcb := NewDBCircuitBreaker(db)
	if err := dcb.PingContext(context.Background()); err != nil {
		t.Errorf("expected ping to succeed, got %v", err)
	}
	if err := dcb.PingContext(context.Background()); err == nil {
		t.Error("expected ping error")
	}
	if dcb.DB() != db {
		t.Error("expected DB() to return underlying database connection")
	}
}

func TestDBConfig(t *testing.T) {
	cfg := DBConfig()

	if cfg.Name != "database" || cfg.MinRequests != 5 || cfg.FailureThreshold != 1.0 {
		t.Errorf("unexpected db config: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", cfg.Timeout)
	}
}
