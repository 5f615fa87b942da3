package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []struct {
	name string
	stmt string
}{
	{"pets", `
CREATE TABLE IF NOT EXISTS pets (
    id         TEXT PRIMARY KEY,
    clinic_id  TEXT NOT NULL,
    owner_id   TEXT NOT NULL,
    name       TEXT NOT NULL
)`},
	{"vaccines", `
CREATE TABLE IF NOT EXISTS vaccines (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    interval_days INTEGER
)`},
	{"vaccinations", `
CREATE TABLE IF NOT EXISTS vaccinations (
    id               TEXT PRIMARY KEY,
    pet_id           TEXT NOT NULL REFERENCES pets(id),
    vaccine_id       TEXT NOT NULL REFERENCES vaccines(id),
    administered_at  TIMESTAMPTZ NOT NULL,
    fired_milestones INTEGER[] NOT NULL DEFAULT '{}'
)`},
	{"feeding_plans", `
CREATE TABLE IF NOT EXISTS feeding_plans (
    id                      TEXT PRIMARY KEY,
    pet_id                  TEXT NOT NULL REFERENCES pets(id),
    product_id              TEXT NOT NULL,
    product_name            TEXT NOT NULL DEFAULT '',
    pet_weight_kg           DOUBLE PRECISION NOT NULL CHECK (pet_weight_kg > 0),
    package_size_grams      INTEGER NOT NULL CHECK (package_size_grams >= 100),
    daily_grams_recommended DOUBLE PRECISION NOT NULL,
    start_date              TIMESTAMPTZ NOT NULL,
    expected_depletion_date TIMESTAMPTZ NOT NULL,
    estimated_days_left     INTEGER NOT NULL,
    notification_sent       BOOLEAN NOT NULL DEFAULT FALSE,
    active                  BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{"user_contacts", `
CREATE TABLE IF NOT EXISTS user_contacts (
    user_id      TEXT PRIMARY KEY,
    chat_address TEXT,
    chat_opt_in  BOOLEAN NOT NULL DEFAULT FALSE,
    email        TEXT
)`},
	{"notifications", `
CREATE TABLE IF NOT EXISTS notifications (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    title           VARCHAR(200) NOT NULL,
    body            TEXT NOT NULL DEFAULT '',
    meta            JSONB NOT NULL DEFAULT '{}',
    channels        TEXT NOT NULL,
    status          VARCHAR(16) NOT NULL DEFAULT 'PENDING'
                    CHECK (status IN ('PENDING', 'SENT', 'FAILED', 'CANCELLED')),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    scheduled_for   TIMESTAMPTZ,
    sent_at         TIMESTAMPTZ,
    delivered_via   VARCHAR(16) NOT NULL DEFAULT '',
    attempts        INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TIMESTAMPTZ,
    last_error      TEXT NOT NULL DEFAULT '',
    dispatch_owner    TEXT NOT NULL DEFAULT '',
    dispatching_until TIMESTAMPTZ
)`},
	{"inbox_items", `
CREATE TABLE IF NOT EXISTS inbox_items (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    title      TEXT NOT NULL,
    body       TEXT NOT NULL DEFAULT '',
    type       VARCHAR(32) NOT NULL DEFAULT '',
    read       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
}

// columns holds notification columns added after the initial schema, so
// databases created before them are upgraded in place.
var columns = []string{
	`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS dispatch_owner TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS dispatching_until TIMESTAMPTZ`,
}

var indexes = []string{
	// pending sweep: status filter plus oldest-first ordering
	`CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications(created_at) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_vaccinations_pet_vaccine ON vaccinations(pet_id, vaccine_id, administered_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_pets_clinic ON pets(clinic_id)`,
	`CREATE INDEX IF NOT EXISTS idx_feeding_plans_active ON feeding_plans(active) WHERE active = TRUE`,
	`CREATE INDEX IF NOT EXISTS idx_inbox_items_user ON inbox_items(user_id, created_at DESC)`,
}

// MigrateUp creates the schema. Every statement is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	for _, col := range columns {
		if _, err := db.ExecContext(ctx, col); err != nil {
			return fmt.Errorf("add column: %w", err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// MigrateDown drops the reminder tables in reverse dependency order.
// It deletes all data in them.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	for i := len(schema) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+schema[i].name+` CASCADE`); err != nil {
			return fmt.Errorf("drop table %s: %w", schema[i].name, err)
		}
	}
	return nil
}
