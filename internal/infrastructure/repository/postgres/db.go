package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS benefits (
	service_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	field TEXT NOT NULL DEFAULT '',
	purpose TEXT NOT NULL DEFAULT '',
	support TEXT NOT NULL DEFAULT '',
	eligibility TEXT NOT NULL DEFAULT '',
	deadline TEXT NOT NULL DEFAULT '',
	application_method TEXT NOT NULL DEFAULT '',
	agency TEXT NOT NULL DEFAULT '',
	area TEXT NOT NULL DEFAULT '',
	district TEXT NOT NULL DEFAULT '',
	min_age INTEGER NOT NULL DEFAULT 0,
	max_age INTEGER NOT NULL DEFAULT 120,
	gender TEXT NOT NULL DEFAULT '',
	income_category TEXT NOT NULL DEFAULT '',
	personal_category TEXT NOT NULL DEFAULT '',
	household_category TEXT NOT NULL DEFAULT '',
	support_type TEXT NOT NULL DEFAULT '',
	benefit_category TEXT NOT NULL DEFAULT '',
	start_date TEXT NOT NULL DEFAULT '',
	end_date TEXT NOT NULL DEFAULT '',
	date_summary TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_benefits_area ON benefits(area);
CREATE INDEX IF NOT EXISTS idx_benefits_age ON benefits(min_age, max_age);

CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	area TEXT NOT NULL DEFAULT '',
	district TEXT NOT NULL DEFAULT '',
	birth_date TEXT NOT NULL DEFAULT '',
	gender TEXT NOT NULL DEFAULT '',
	income_range TEXT NOT NULL DEFAULT '',
	personal_tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	household_tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the benefits and users relations.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/importer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
