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

func (r *TurnLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS turn_logs (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	property_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	query TEXT NOT NULL,
	normalized_query TEXT NOT NULL,
	topic TEXT,
	outcome TEXT NOT NULL,
	top_score DOUBLE PRECISION NOT NULL,
	candidate_count INTEGER NOT NULL,
	evidence_admitted BOOLEAN NOT NULL,
	verification_issues JSONB NOT NULL DEFAULT '[]',
	final_answer TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]',
	duration_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_logs_session ON turn_logs (session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_turn_logs_outcome ON turn_logs (outcome, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure turn_logs schema: %w", err)
	}
	return tx.Commit()
}
