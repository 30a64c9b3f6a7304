package repository

import (
	"context"
	"fmt"
)

// schema creates the CRM tables. Every statement is idempotent so Migrate can
// run on each deploy.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		id         BIGSERIAL PRIMARY KEY,
		module     TEXT NOT NULL,
		action     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (module, action)
	)`,
	`CREATE TABLE IF NOT EXISTS user_permissions (
		user_id       BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, permission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS statuses (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id               BIGSERIAL PRIMARY KEY,
		name             TEXT,
		company_name     TEXT,
		location         TEXT,
		phone            TEXT,
		email            TEXT,
		service_id       BIGINT NOT NULL REFERENCES services(id),
		status_id        BIGINT NOT NULL REFERENCES statuses(id),
		assigned_user_id BIGINT NOT NULL REFERENCES users(id),
		created_by       BIGINT REFERENCES users(id) ON DELETE SET NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS leads_assigned_user_id_idx ON leads (assigned_user_id)`,
	`CREATE INDEX IF NOT EXISTS leads_phone_idx ON leads (phone)`,
	`CREATE INDEX IF NOT EXISTS leads_email_idx ON leads (email)`,
	`CREATE TABLE IF NOT EXISTS lead_details (
		id                    BIGSERIAL PRIMARY KEY,
		lead_id               BIGINT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		call_followup_date    TIMESTAMPTZ NOT NULL,
		call_followup_summary TEXT NOT NULL DEFAULT '',
		next_call_date        TIMESTAMPTZ,
		called_at             TIMESTAMPTZ,
		created_by            BIGINT REFERENCES users(id) ON DELETE SET NULL,
		assigned_to           BIGINT REFERENCES users(id) ON DELETE SET NULL,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS lead_details_lead_id_idx ON lead_details (lead_id, id)`,
	`CREATE TABLE IF NOT EXISTS call_trackings (
		id                    BIGSERIAL PRIMARY KEY,
		lead_id               BIGINT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
		user_id               BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		lead_detail_id        BIGINT REFERENCES lead_details(id) ON DELETE SET NULL,
		phone_number          TEXT NOT NULL,
		call_id               TEXT UNIQUE,
		call_started_at       TIMESTAMPTZ,
		call_ended_at         TIMESTAMPTZ,
		call_duration_seconds BIGINT NOT NULL DEFAULT 0,
		call_status           TEXT NOT NULL DEFAULT 'initiated' CHECK (call_status IN
			('initiated', 'ringing', 'answered', 'completed', 'cancelled', 'failed', 'busy', 'no_answer')),
		call_summary          TEXT,
		audio_recording_path  TEXT,
		call_metadata         JSONB,
		device_type           TEXT NOT NULL DEFAULT 'web',
		device_id             TEXT,
		is_auto_dialed        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS call_trackings_lead_user_idx ON call_trackings (lead_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS call_trackings_started_idx ON call_trackings (call_started_at)`,
	`CREATE INDEX IF NOT EXISTS call_trackings_status_idx ON call_trackings (call_status)`,
	`CREATE INDEX IF NOT EXISTS call_trackings_lead_detail_idx ON call_trackings (lead_detail_id)`,
}

// Migrate applies the schema
func Migrate(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
