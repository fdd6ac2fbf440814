package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id           VARCHAR(32)  PRIMARY KEY,
				name         VARCHAR(255) NOT NULL,
				email        VARCHAR(255) NOT NULL,
				role         VARCHAR(16)  NOT NULL DEFAULT 'user',
				can_upload   BOOLEAN      NOT NULL DEFAULT TRUE,
				skip_review  BOOLEAN      NOT NULL DEFAULT FALSE,
				join_date    VARCHAR(10)  NOT NULL,
				upload_count INTEGER      NOT NULL DEFAULT 0,
				permissions  JSONB        NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		`,
	},
	{
		Version: "000002_create_scripts",
		SQL: `
			CREATE TABLE IF NOT EXISTS scripts (
				id             VARCHAR(32)  PRIMARY KEY,
				title          VARCHAR(255) NOT NULL,
				description    TEXT         NOT NULL,
				image_url      TEXT         NOT NULL DEFAULT '',
				json_url       TEXT         NOT NULL DEFAULT '',
				json_data      JSONB        NOT NULL DEFAULT '{}',
				uploader_id    VARCHAR(32)  NOT NULL,
				uploader_name  VARCHAR(255) NOT NULL,
				upload_date    VARCHAR(10)  NOT NULL,
				likes          INTEGER      NOT NULL DEFAULT 0,
				downloads      INTEGER      NOT NULL DEFAULT 0,
				status         VARCHAR(16)  NOT NULL DEFAULT 'pending',
				tags           TEXT[]       NOT NULL DEFAULT '{}',
				version        VARCHAR(64)  NOT NULL,
				base_script_id VARCHAR(32)  NOT NULL,
				created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_scripts_status ON scripts(status);
			CREATE INDEX IF NOT EXISTS idx_scripts_base ON scripts(base_script_id);
			CREATE INDEX IF NOT EXISTS idx_scripts_uploader ON scripts(uploader_id);
		`,
	},
	{
		Version: "000003_create_system_config",
		SQL: `
			CREATE TABLE IF NOT EXISTS system_config (
				id              INTEGER PRIMARY KEY CHECK (id = 1),
				available_tags  TEXT[]  NOT NULL DEFAULT '{}',
				system_settings JSONB   NOT NULL DEFAULT '{}'
			);
		`,
	},
	{
		Version: "000004_seed_defaults",
		SQL: `
			INSERT INTO users (id, name, email, role, can_upload, skip_review, join_date, upload_count, permissions)
			VALUES
				('1', 'Administrator', 'admin@example.com', 'admin', TRUE, TRUE, '2024-01-01', 0,
				 '{"canViewScripts":true,"canDownloadScripts":true,"canUploadScripts":true,"canManageUsers":true,"canManageTags":true,"canApproveScripts":true,"canDeleteScripts":true}'),
				('2', 'Regular User', 'user@example.com', 'user', TRUE, FALSE, '2024-01-15', 0,
				 '{"canViewScripts":true,"canDownloadScripts":true,"canUploadScripts":true,"canManageUsers":false,"canManageTags":false,"canApproveScripts":false,"canDeleteScripts":false}')
			ON CONFLICT (id) DO NOTHING;

			INSERT INTO system_config (id, available_tags, system_settings)
			VALUES (1,
				ARRAY['mystery','suspense','sci-fi','horror','adventure','roleplay','co-op','easy','medium','hard'],
				'{"allowUserRegistration":true,"requireScriptApproval":true,"maxUploadSizeKB":10240,"allowedFileTypes":["image/jpeg","image/png","image/gif","application/json"],"maxUploadsPerDay":10,"maxScriptsPerUser":50,"requireEmailVerification":false,"autoApproveNewUsers":true}')
			ON CONFLICT (id) DO NOTHING;
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
