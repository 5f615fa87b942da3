package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"vetcare/internal/pkg/config"
	"vetcare/internal/resilience/retry"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default pool settings. The worker is the
// only client, so the pool is sized for one tick's dispatch concurrency.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

var ErrMissingDSN = errors.New("DATABASE_URL not set")

// Open creates the connection pool from DATABASE_URL and verifies it with a
// ping, retried with backoff while the database comes up.
func Open(ctx context.Context) (*sql.DB, error) {
	dsn := config.LoadEnvString("DATABASE_URL", "")
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	cfg := getConnectionConfigFromEnv()
	applyConnectionConfig(db, cfg)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	if err := Ping(ctx, db, retry.StoreConfig()); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("database connection established successfully")
	return db, nil
}

// Ping checks connectivity, retrying transient failures according to cfg.
func Ping(ctx context.Context, db *sql.DB, cfg retry.Config) error {
	return retry.WithBackoff(ctx, cfg, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
}

func applyConnectionConfig(db *sql.DB, cfg ConnectionConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// getConnectionConfigFromEnv overlays DB_* environment variables on the
// defaults. Unparsable or non-positive values keep the default.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	positive := func(v int) error { return config.ValidateIntRange(v, 1, 10000) }

	fb := config.NewFallbacks(slog.Default(), nil)

	cfg.MaxOpenConns = config.Track(fb, "db_max_open_conns",
		config.LoadEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, positive))
	cfg.MaxIdleConns = config.Track(fb, "db_max_idle_conns",
		config.LoadEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, positive))
	cfg.ConnMaxLifetime = config.Track(fb, "db_conn_max_lifetime",
		config.LoadEnvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime, config.ValidatePositiveDuration))
	cfg.ConnMaxIdleTime = config.Track(fb, "db_conn_max_idle_time",
		config.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime, config.ValidatePositiveDuration))
	return cfg
}
