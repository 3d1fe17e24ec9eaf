package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration is a named, idempotent schema step.
type Migration struct {
	Name       string
	Statements []string
}

// Migrations lists the schema in apply order. Appending is the only safe edit.
var Migrations = []Migration{
	{
		Name: "0001_users",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				username VARCHAR(64) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				role VARCHAR(16) NOT NULL DEFAULT 'user',
				profile_pic TEXT NULL,
				last_login TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS refresh_tokens (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token TEXT NOT NULL UNIQUE,
				expires_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				revoked BOOLEAN NOT NULL DEFAULT FALSE,
				revoked_at TIMESTAMPTZ NULL,
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		Name: "0002_attendance",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS attendance (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id),
				date DATE NOT NULL,
				status VARCHAR(16) NOT NULL,
				time VARCHAR(8) NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT attendance_user_date_key UNIQUE (user_id, date)
			)`,
			`CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance (date)`,
		},
	},
	{
		Name: "0003_leave_requests",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS leave_requests (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id),
				date DATE NOT NULL,
				reason TEXT NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'pending',
				decided_by UUID NULL,
				decided_at TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS leave_requests_user_idx ON leave_requests (user_id)`,
		},
	},
	{
		Name: "0004_grades",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS grades (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL,
				days_attended INTEGER NOT NULL,
				grade VARCHAR(1) NOT NULL,
				computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	},
	{
		Name: "0005_configurations_audit",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS configurations (
				key VARCHAR(128) PRIMARY KEY,
				value TEXT NOT NULL,
				type VARCHAR(16) NOT NULL DEFAULT 'STRING',
				description TEXT NULL,
				updated_by UUID NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS audit_logs (
				id UUID PRIMARY KEY,
				user_id UUID NULL,
				action VARCHAR(64) NOT NULL,
				resource VARCHAR(64) NOT NULL,
				resource_id TEXT NULL,
				old_values JSONB NULL,
				new_values JSONB NULL,
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	},
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name VARCHAR(128) PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrate applies every pending migration, each inside its own transaction.
// It returns the names of the migrations it applied.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	var ran []string
	for _, m := range Migrations {
		if _, ok := done[m.Name]; ok {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return ran, err
		}
		logger.Info("migration applied", zap.String("name", m.Name))
		ran = append(ran, m.Name)
	}
	return ran, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range m.Statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Name, err)
	}
	return nil
}
