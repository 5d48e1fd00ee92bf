package database

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL and makes sure the schema exists.
func ConnectPostgres(postgresURI string, log *zap.Logger) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = PostgresDB.PingContext(ctx); err != nil {
		return err
	}

	log.Info("✅ Connected to PostgreSQL")

	if err = InitPostgresTables(ctx, PostgresDB); err != nil {
		return err
	}
	log.Info("✅ PostgreSQL tables initialized")
	return nil
}

// schema is applied in order on every start; each statement is idempotent.
var schema = []string{
	// Accounts. Password hashes never leave this table.
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login_at TIMESTAMPTZ
	)`,

	// One profile per user, created in the same transaction as the user.
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		full_name VARCHAR(255) NOT NULL,
		phone_number VARCHAR(32),
		address TEXT,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS complaints (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category VARCHAR(32) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		location TEXT,
		status VARCHAR(32) NOT NULL DEFAULT 'Submitted',
		idempotency_key VARCHAR(128),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT complaints_status_check CHECK (status IN ('Submitted', 'In Progress', 'Resolved', 'Closed'))
	)`,

	`CREATE TABLE IF NOT EXISTS otp_verifications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		channel VARCHAR(16) NOT NULL,
		destination VARCHAR(255) NOT NULL,
		secret TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		attempts INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE otp_verifications ADD COLUMN IF NOT EXISTS attempts INT NOT NULL DEFAULT 0`,

	`CREATE TABLE IF NOT EXISTS admin_audit_log (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		action VARCHAR(16) NOT NULL,
		actor_id UUID REFERENCES users(id) ON DELETE SET NULL,
		target_email VARCHAR(255) NOT NULL,
		justification TEXT,
		ip_address VARCHAR(255),
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users(LOWER(email))`,
	`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_user_profiles_is_admin ON user_profiles(is_admin)`,
	`CREATE INDEX IF NOT EXISTS idx_complaints_user_id_created_at ON complaints(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status)`,
	`CREATE INDEX IF NOT EXISTS idx_complaints_created_at ON complaints(created_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_complaints_idempotency ON complaints(user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_otp_verifications_user_channel ON otp_verifications(user_id, channel, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_otp_verifications_expires_at ON otp_verifications(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_admin_audit_log_created_at ON admin_audit_log(created_at)`,
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables(ctx context.Context, db *sql.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
