package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/manual-share/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB wraps an existing pool, e.g. a sqlmock connection in tests
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Schema is the full DDL applied by InitSchema. Every statement is idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS organizations (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		plan VARCHAR(20) NOT NULL DEFAULT 'free',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(255),
		role VARCHAR(20) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		language VARCHAR(5) NOT NULL DEFAULT 'ja',
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		is_admin BOOLEAN NOT NULL DEFAULT false,
		invite_token VARCHAR(64) UNIQUE,
		invite_expires_at TIMESTAMPTZ,
		is_onboarded BOOLEAN NOT NULL DEFAULT false,
		auth_id VARCHAR(255) UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS auth_identities (
		id VARCHAR(64) PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS manuals (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		title VARCHAR(500) NOT NULL,
		description TEXT,
		category VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'draft',
		is_visible BOOLEAN NOT NULL DEFAULT true,
		language VARCHAR(5) NOT NULL DEFAULT 'ja',
		blocks JSONB NOT NULL DEFAULT '[]',
		department_tags TEXT[] NOT NULL DEFAULT '{}',
		parent_manual_id UUID REFERENCES manuals(id) ON DELETE SET NULL,
		view_count INTEGER NOT NULL DEFAULT 0,
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS manual_translations (
		id UUID PRIMARY KEY,
		manual_id UUID NOT NULL REFERENCES manuals(id) ON DELETE CASCADE,
		target_language VARCHAR(5) NOT NULL,
		translated_title VARCHAR(500) NOT NULL,
		translated_blocks JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(manual_id, target_language)
	);

	CREATE TABLE IF NOT EXISTS quiz_sessions (
		id UUID PRIMARY KEY,
		manual_id UUID NOT NULL REFERENCES manuals(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		score INTEGER NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL,
		percentage NUMERIC(5, 2) NOT NULL DEFAULT 0,
		target_language VARCHAR(5),
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS quiz_questions (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
		question_text TEXT NOT NULL,
		options JSONB NOT NULL,
		correct_answer TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		order_index INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quiz_answers (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
		question_id UUID NOT NULL REFERENCES quiz_questions(id) ON DELETE CASCADE,
		user_answer TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL,
		answered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL,
		user_id UUID,
		action VARCHAR(100) NOT NULL,
		resource_type VARCHAR(100) NOT NULL,
		resource_id UUID,
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(255),
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
	CREATE INDEX IF NOT EXISTS idx_manuals_organization_id ON manuals(organization_id);
	CREATE INDEX IF NOT EXISTS idx_manuals_status_visible ON manuals(organization_id, status, is_visible);
	CREATE INDEX IF NOT EXISTS idx_quiz_sessions_user_id ON quiz_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_quiz_sessions_manual_id ON quiz_sessions(manual_id);
	CREATE INDEX IF NOT EXISTS idx_quiz_questions_session_id ON quiz_questions(session_id);
	CREATE INDEX IF NOT EXISTS idx_quiz_answers_session_id ON quiz_answers(session_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs(org_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_request_id ON audit_logs(request_id);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
